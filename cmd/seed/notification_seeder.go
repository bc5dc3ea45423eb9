package main

import (
	"context"

	"notification-hub-be/internal/model"
	"notification-hub-be/internal/repository"
	"notification-hub-be/pkg/utils"
)

const seedSender = "system"

var broadcasts = []struct{ title, body string }{
	{"Welcome", "Notifications now arrive live while you are signed in."},
	{"Scheduled maintenance", "The service will be read-only on Sunday between 02:00 and 03:00 UTC."},
}

// SeedNotifications stores the demo broadcasts plus one direct message per
// user and returns how many rows were written.
func SeedNotifications(ctx context.Context, repo repository.NotificationRepository, users []string) (int, error) {
	created := 0

	for _, b := range broadcasts {
		n := &model.Notification{
			TargetType: model.TargetAll,
			Title:      b.title,
			Body:       b.body,
			Sender:     seedSender,
		}
		if err := repo.Save(ctx, n); err != nil {
			return created, err
		}
		created++
	}

	for _, raw := range users {
		username := utils.NormalizeUsername(raw)
		if username == "" {
			continue
		}
		n := &model.Notification{
			TargetType:     model.TargetUser,
			TargetUsername: &username,
			Title:          "Hello " + username,
			Body:           "This message is only visible to you.",
			Sender:         seedSender,
		}
		if err := repo.Save(ctx, n); err != nil {
			return created, err
		}
		created++
	}

	return created, nil
}
