package service

import (
	"testing"

	"github.com/klasio/lms-backend/internal/model"
)

func ptr(n int) *int { return &n }

func TestGradeAnswers(t *testing.T) {
	key := map[int64]int{101: 2, 102: 1, 103: 3}

	tests := []struct {
		name    string
		answers []model.AttemptAnswer
		want    int
	}{
		{
			name: "all correct",
			answers: []model.AttemptAnswer{
				{QuestionID: 101, SelectedOption: ptr(2)},
				{QuestionID: 102, SelectedOption: ptr(1)},
				{QuestionID: 103, SelectedOption: ptr(3)},
			},
			want: 3,
		},
		{
			name: "partially correct",
			answers: []model.AttemptAnswer{
				{QuestionID: 101, SelectedOption: ptr(2)},
				{QuestionID: 102, SelectedOption: ptr(3)},
				{QuestionID: 103, SelectedOption: ptr(3)},
			},
			want: 2,
		},
		{
			name: "nulls never count",
			answers: []model.AttemptAnswer{
				{QuestionID: 101, SelectedOption: nil},
				{QuestionID: 102, SelectedOption: nil},
				{QuestionID: 103, SelectedOption: ptr(3)},
			},
			want: 1,
		},
		{
			name: "unknown question ignored",
			answers: []model.AttemptAnswer{
				{QuestionID: 999, SelectedOption: ptr(2)},
				{QuestionID: 101, SelectedOption: ptr(2)},
			},
			want: 1,
		},
		{
			name:    "empty submission",
			answers: nil,
			want:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := gradeAnswers(key, tt.answers); got != tt.want {
				t.Errorf("gradeAnswers() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestScoreOf(t *testing.T) {
	if got := scoreOf(3, 4); got != 75 {
		t.Errorf("scoreOf(3, 4) = %v, want 75", got)
	}
	if got := scoreOf(0, 10); got != 0 {
		t.Errorf("scoreOf(0, 10) = %v, want 0", got)
	}
	if got := scoreOf(0, 0); got != 0 {
		t.Errorf("scoreOf(0, 0) = %v, want 0 (no divide by zero)", got)
	}
	if got := scoreOf(7, 7); got != 100 {
		t.Errorf("scoreOf(7, 7) = %v, want 100", got)
	}
}
