package events

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ConsoleOutput writes each message as a structured log line.
type ConsoleOutput struct {
	log logrus.FieldLogger
}

func NewConsoleOutput(log logrus.FieldLogger) *ConsoleOutput {
	return &ConsoleOutput{log: log}
}

func (c *ConsoleOutput) WriteMessage(topic string, msg []byte) error {
	c.log.WithField("topic", topic).Info(string(msg))
	return nil
}

func (c *ConsoleOutput) WriteKeyed(topic, key string, msg []byte) error {
	c.log.WithFields(logrus.Fields{"topic": topic, "key": key}).Info(string(msg))
	return nil
}

func (c *ConsoleOutput) Close() error {
	return nil
}

// JSONOutput appends messages as JSON lines, partitioned by topic and by the
// hour of the event timestamp.
type JSONOutput struct {
	basePath string
	folder   string

	mu    sync.Mutex
	files map[string]*os.File
}

func NewJSONOutput(basePath, folder string) *JSONOutput {
	return &JSONOutput{
		basePath: basePath,
		folder:   folder,
		files:    make(map[string]*os.File),
	}
}

func (j *JSONOutput) WriteMessage(topic string, msg []byte) error {
	var event map[string]interface{}
	if err := json.Unmarshal(msg, &event); err != nil {
		return err
	}

	timestamp, ok := event["timestamp"].(float64)
	if !ok {
		return fmt.Errorf("invalid timestamp")
	}

	partitionPath := PartitionPath(time.Unix(int64(timestamp), 0).UTC())
	fullPath := filepath.Join(j.basePath, j.folder, topic, partitionPath)

	j.mu.Lock()
	defer j.mu.Unlock()

	fileKey := fmt.Sprintf("%s_%s", topic, partitionPath)
	file, ok := j.files[fileKey]
	if !ok {
		if err := os.MkdirAll(fullPath, os.ModePerm); err != nil {
			return err
		}
		var err error
		file, err = os.OpenFile(filepath.Join(fullPath, "data.json"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		j.files[fileKey] = file
	}

	if _, err := file.Write(msg); err != nil {
		return err
	}
	_, err := file.WriteString("\n")
	return err
}

func (j *JSONOutput) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	var lastErr error
	for key, file := range j.files {
		if err := file.Close(); err != nil {
			lastErr = err
		}
		delete(j.files, key)
	}
	return lastErr
}

// PartitionPath is the hive-style hour partition for t.
func PartitionPath(t time.Time) string {
	year, month, day := t.Date()
	return fmt.Sprintf("year=%d/month=%02d/day=%02d/hour=%02d", year, month, day, t.Hour())
}
