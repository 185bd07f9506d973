package services

import (
	"encoding/json"
	"strings"

	"github.com/reyurquiza/retail-order-cancellation-tracker/internal/database/models"
	"gorm.io/gorm"
)

// LogService persists leveled, structured log entries
type LogService struct {
	db       *gorm.DB
	logLevel models.LogLevel
}

// NewLogService creates a new LogService instance
func NewLogService(db *gorm.DB) *LogService {
	return &LogService{
		db:       db,
		logLevel: models.LogLevelInfo,
	}
}

// NewLogServiceWithLevel creates a new LogService instance with a
// minimum log level
func NewLogServiceWithLevel(db *gorm.DB, level string) *LogService {
	return &LogService{
		db:       db,
		logLevel: parseLogLevel(level),
	}
}

// parseLogLevel converts a string to LogLevel
func parseLogLevel(level string) models.LogLevel {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return models.LogLevelDebug
	case "INFO":
		return models.LogLevelInfo
	case "WARN", "WARNING":
		return models.LogLevelWarn
	case "ERROR":
		return models.LogLevelError
	default:
		return models.LogLevelInfo
	}
}

// shouldLog checks if a log entry should be recorded based on level
func (s *LogService) shouldLog(level models.LogLevel) bool {
	levelPriority := map[models.LogLevel]int{
		models.LogLevelDebug: 0,
		models.LogLevelInfo:  1,
		models.LogLevelWarn:  2,
		models.LogLevelError: 3,
	}
	return levelPriority[level] >= levelPriority[s.logLevel]
}

// LogEntry represents a log entry to be created
type LogEntry struct {
	Level   models.LogLevel
	Module  models.LogModule
	Action  string
	Message string
	Details interface{} // serialized to JSON
}

// Log creates a new log entry
func (s *LogService) Log(entry LogEntry) error {
	if !s.shouldLog(entry.Level) {
		return nil
	}

	var detailsJSON string
	if entry.Details != nil {
		data, err := json.Marshal(entry.Details)
		if err != nil {
			detailsJSON = "{}"
		} else {
			detailsJSON = string(data)
		}
	}

	record := &models.Log{
		Level:   string(entry.Level),
		Module:  string(entry.Module),
		Action:  entry.Action,
		Message: entry.Message,
		Details: detailsJSON,
	}
	return s.db.Create(record).Error
}

// LogDebug records a DEBUG entry
func (s *LogService) LogDebug(module models.LogModule, action, message string, details map[string]interface{}) {
	_ = s.Log(LogEntry{Level: models.LogLevelDebug, Module: module, Action: action, Message: message, Details: details})
}

// LogInfo records an INFO entry
func (s *LogService) LogInfo(module models.LogModule, action, message string, details map[string]interface{}) {
	_ = s.Log(LogEntry{Level: models.LogLevelInfo, Module: module, Action: action, Message: message, Details: details})
}

// LogWarn records a WARN entry
func (s *LogService) LogWarn(module models.LogModule, action, message string, details map[string]interface{}) {
	_ = s.Log(LogEntry{Level: models.LogLevelWarn, Module: module, Action: action, Message: message, Details: details})
}

// LogError records an ERROR entry
func (s *LogService) LogError(module models.LogModule, action, message string, details map[string]interface{}) {
	_ = s.Log(LogEntry{Level: models.LogLevelError, Module: module, Action: action, Message: message, Details: details})
}

// ListLogsOptions filters log queries
type ListLogsOptions struct {
	Level  string
	Module string
	Limit  int
	Offset int
}

// ListLogs returns log entries, newest first
func (s *LogService) ListLogs(opts ListLogsOptions) ([]models.Log, int64, error) {
	q := s.db.Model(&models.Log{})
	if opts.Level != "" {
		q = q.Where("level = ?", strings.ToUpper(opts.Level))
	}
	if opts.Module != "" {
		q = q.Where("module = ?", opts.Module)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := opts.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var logs []models.Log
	err := q.Order("created_at desc, id desc").Limit(limit).Offset(opts.Offset).Find(&logs).Error
	return logs, total, err
}
