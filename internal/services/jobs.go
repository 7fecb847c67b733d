package services

import (
	"context"

	"github.com/rs/zerolog"

	"todo-planner/internal/clock"
	"todo-planner/internal/repositories"
	"todo-planner/internal/worker"
)

func NewStatusChangedHandler(log zerolog.Logger) worker.JobHandler {
	return func(ctx context.Context, job *worker.Job) error {
		var change StatusChange
		if err := job.Decode(&change); err != nil {
			return err
		}
		log.Info().
			Str("task_id", change.TaskID.String()).
			Str("user_id", change.UserID.String()).
			Str("from", change.From.DisplayName()).
			Str("to", change.To.DisplayName()).
			Time("at", change.At).
			Msg("task status changed")
		return nil
	}
}

// NewReminderHandler logs one reminder per active task due today.
func NewReminderHandler(tasks repositories.TaskRepository, c clock.Clock, log zerolog.Logger) worker.JobHandler {
	return func(ctx context.Context, job *worker.Job) error {
		today := clock.Today(c)
		due, err := tasks.ListDueOn(ctx, today)
		if err != nil {
			return err
		}
		for _, t := range due {
			log.Info().
				Str("task_id", t.ID.String()).
				Str("user_id", t.UserID.String()).
				Str("title", t.Title).
				Str("priority", t.Priority.DisplayName()).
				Msg("task due today")
		}
		log.Debug().Int("count", len(due)).Time("day", today).Msg("due reminders sent")
		return nil
	}
}

func NewTokenCleanupHandler(tokens repositories.TokenRepository, c clock.Clock, log zerolog.Logger) worker.JobHandler {
	return func(ctx context.Context, job *worker.Job) error {
		removed, err := tokens.DeleteExpired(ctx, c.Now().UTC())
		if err != nil {
			return err
		}
		log.Info().Int64("removed", removed).Msg("expired refresh tokens removed")
		return nil
	}
}
