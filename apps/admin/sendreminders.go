package main

import (
	"context"
	"fmt"
	"time"
)

func (cli *commandLine) sendReminders() error {
	stats, err := cli.reminderSvc.Run(context.Background(), time.Now())
	if err != nil {
		return err
	}
	fmt.Printf(
		"reminder sweep done: %d plans, %d events, %d items, %d users notified\n",
		stats.PlansSwept, stats.EventsSwept, stats.ItemsRemindedN, stats.UsersNotified)
	return nil
}
