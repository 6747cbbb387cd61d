package main

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/klasio/lms-backend/internal/config"
	"github.com/klasio/lms-backend/internal/database"
	"github.com/klasio/lms-backend/internal/logger"
	"github.com/klasio/lms-backend/internal/model"
	"github.com/klasio/lms-backend/internal/repository"
)

// Seeds 50 demo students into one class, NIS 10001..10050, shared password
// "student123". Meant for load tests and local dev only.
func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	studentRepo := repository.NewStudentRepository(pool)

	fmt.Println("=== Seeding 50 Students ===")

	className := "12-A"

	names := []string{
		"Budi Santoso", "Siti Aminah", "Andi Pratama", "Rina Wati", "Joko Susilo",
		"Ayu Lestari", "Dodi Kusuma", "Eka Putri", "Fahri Hamzah", "Gita Savitri",
		"Hendra Gunawan", "Ika Sari", "Jamal Mirdad", "Kiki Fatmala", "Lukman Hakim",
		"Maya Septiana", "Nanda Pratama", "Oki Setiana", "Putri Dian", "Qori Maharani",
		"Rafi Ahmad", "Siska Saraswati", "Toni Setiawan", "Umi Kalsum", "Vina Panduwinata",
		"Wahyu Hidayat", "Xena Maharani", "Yudi Pratama", "Zaki Anwar", "Alifia Zahra",
		"Bagas Saputra", "Citra Kirana", "Dimas Anggara", "Elisa Novita", "Fikri Maulana",
		"Gali Rakasiwi", "Hani Hanifah", "Iqbal Ramadhan", "Jasmine Azzahra", "Kevin Sanjaya",
		"Larasati Dewi", "Miko Pambudi", "Nia Ramadhani", "Oscar Lawalata", "Puput Melati",
		"Reza Rahadian", "Sari Nila", "Tigor Siahaan", "Utari Maharani", "Vicky Prasetyo",
	}

	// One shared hash keeps the seed fast at high bcrypt costs.
	hash, err := bcrypt.GenerateFromPassword([]byte("student123"), cfg.BcryptCost)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash password")
	}

	created := 0
	for i, name := range names {
		student := &model.Student{
			NIS:          fmt.Sprintf("%d", 10001+i),
			Name:         name,
			PasswordHash: string(hash),
			ClassName:    className,
		}
		if err := studentRepo.Create(ctx, student); err != nil {
			log.Warn().Err(err).Str("nis", student.NIS).Msg("Skipping student")
			continue
		}
		created++
	}

	fmt.Printf("Done. Created %d/%d students (password: student123)\n", created, len(names))
}
