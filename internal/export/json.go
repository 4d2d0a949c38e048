package export

import (
	"encoding/json"
	"time"

	"celcatsync/internal/models"
)

// JSON writes events as a JSON array.
type JSON struct {
	Pretty bool
}

type jsonEvent struct {
	ID       *string    `json:"id"`
	Kind     string     `json:"type"`
	Title    string     `json:"name"`
	Group    *string    `json:"group"`
	Details  string     `json:"details"`
	Location string     `json:"location"`
	Start    *time.Time `json:"start"`
	End      *time.Time `json:"end"`
	Color    *string    `json:"color"`
}

func (j JSON) Write(events []models.Event, out string) error {
	data, err := j.Marshal(events)
	if err != nil {
		return err
	}
	return writeFile(out, data)
}

// Marshal encodes events.
func (j JSON) Marshal(events []models.Event) ([]byte, error) {
	rows := make([]jsonEvent, 0, len(events))
	for _, ev := range events {
		rows = append(rows, jsonEvent(ev))
	}
	if j.Pretty {
		return json.MarshalIndent(rows, "", "  ")
	}
	return json.Marshal(rows)
}
