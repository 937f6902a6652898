// Command seed fills a development database with advisors, students and a
// few conversations. Every account gets the same password.
package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"advising/config"
	"advising/db"
	"advising/logger"
	"advising/models"
	"advising/services"

	"github.com/brianvoe/gofakeit/v7"
)

func main() {
	var (
		configPath string
		advisors   int
		students   int
		messages   int
		password   string
	)
	flag.StringVar(&configPath, "config", "config.yaml", "Path to the configuration file")
	flag.IntVar(&advisors, "advisors", 3, "Number of advisors to create")
	flag.IntVar(&students, "students", 20, "Number of students to create")
	flag.IntVar(&messages, "messages", 6, "Maximum messages per conversation")
	flag.StringVar(&password, "password", "password123", "Password for every seeded account")
	flag.Parse()

	conf, err := config.LoadConfig(configPath)
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}
	logger.Init(conf.Logs.Level, "console")

	manager, err := db.Connect(conf)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to the database")
	}
	defer manager.Close()
	if err = manager.Migrate(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to migrate the database")
	}

	ctx := context.Background()
	auth := services.NewAuthService(manager)
	profiles := services.NewProfileService(manager, nil)
	store := services.NewMessageStore(manager)

	advisorIDs := make([]int64, 0, advisors)
	for i := 0; i < advisors; i++ {
		name, surname := gofakeit.FirstName(), gofakeit.LastName()
		advisor, err := auth.CreateAdvisor(ctx, services.CreateAdvisorInput{
			Name:     name,
			Surname:  surname,
			Email:    gofakeit.Email(),
			Username: fmt.Sprintf("%s.%s", strings.ToLower(name), gofakeit.Numerify("###")),
			Password: password,
		})
		if err != nil {
			logger.Error().Err(err).Msg("Failed to create advisor")
			continue
		}
		start := gofakeit.RandomString([]string{"09:00", "10:00", "13:00"})
		end := gofakeit.RandomString([]string{"15:00", "16:30", "17:00"})
		office := gofakeit.Numerify("B-###")
		days := gofakeit.RandomString([]string{"Mon,Wed", "Tue,Thu", "Mon,Fri"})
		_, err = profiles.UpdateAdvisor(ctx, services.Caller{Role: models.RoleAdvisor, ID: advisor.ID}, advisor.ID, services.AdvisorUpdate{
			OfficeNumber:     &office,
			OfficeHoursStart: &start,
			OfficeHoursEnd:   &end,
			OfficeDays:       &days,
		})
		if err != nil {
			logger.Warn().Err(err).Int64("advisor_id", advisor.ID).Msg("Failed to set office hours")
		}
		advisorIDs = append(advisorIDs, advisor.ID)
		logger.Info().Int64("id", advisor.ID).Str("username", advisor.Username).Msg("advisor")
	}
	if len(advisorIDs) == 0 {
		logger.Fatal().Msg("No advisors created")
	}

	for i := 0; i < students; i++ {
		advisorID := advisorIDs[i%len(advisorIDs)]
		student, err := auth.RegisterStudent(ctx, services.RegisterStudentInput{
			Name:          gofakeit.FirstName(),
			Surname:       gofakeit.LastName(),
			Email:         gofakeit.Email(),
			StudentNumber: gofakeit.Numerify("2024#####"),
			Password:      password,
			AdvisorID:     &advisorID,
		})
		if err != nil {
			logger.Error().Err(err).Msg("Failed to create student")
			continue
		}

		for j := gofakeit.Number(0, messages); j > 0; j-- {
			sender, senderID, receiverID, content := models.RoleStudent, student.ID, advisorID, gofakeit.Question()
			if j%2 == 0 {
				sender, senderID, receiverID, content = models.RoleAdvisor, advisorID, student.ID, gofakeit.Phrase()
			}
			if _, err = store.Append(ctx, sender, senderID, receiverID, content, nil); err != nil {
				logger.Error().Err(err).Msg("Failed to append message")
			}
		}
		logger.Info().Int64("id", student.ID).Str("student_number", student.StudentNumber).Int64("advisor_id", advisorID).Msg("student")
	}
}
