package scheduler

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const TaskPursueStalledLeads = "funnel.pursue_stalled"

const TaskSendViewingReminders = "viewings.send_reminders"

type PursueStalledPayload struct {
	RequestedAt time.Time `json:"requestedAt"`
}

type SendRemindersPayload struct {
	RequestedAt time.Time `json:"requestedAt"`
}

func NewPursueStalledTask(payload PursueStalledPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPursueStalledLeads, data), nil
}

func ParsePursueStalledPayload(task *asynq.Task) (PursueStalledPayload, error) {
	var payload PursueStalledPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return PursueStalledPayload{}, err
	}
	return payload, nil
}

func NewSendRemindersTask(payload SendRemindersPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSendViewingReminders, data), nil
}

func ParseSendRemindersPayload(task *asynq.Task) (SendRemindersPayload, error) {
	var payload SendRemindersPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return SendRemindersPayload{}, err
	}
	return payload, nil
}
