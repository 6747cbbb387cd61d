package model

import "time"

// Student represents a student user.
type Student struct {
	ID           int64     `json:"id"`
	NIS          string    `json:"nis"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	ClassName    string    `json:"class_name"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// StudentLoginRequest is the payload for student authentication.
type StudentLoginRequest struct {
	NIS      string `json:"nis" binding:"required,min=4,max=20"`
	Password string `json:"password" binding:"required,min=4,max=128"`
}

// StudentLoginResponse is returned after successful student login.
type StudentLoginResponse struct {
	Token   string  `json:"token"`
	Student Student `json:"student"`
}

// CreateStudentRequest is the payload for creating a new student account.
type CreateStudentRequest struct {
	NIS       string `json:"nis" binding:"required,min=4,max=20"`
	Name      string `json:"name" binding:"required,min=2,max=100"`
	Password  string `json:"password" binding:"required,min=6,max=128"`
	ClassName string `json:"class_name" binding:"required,min=1,max=30"`
}
