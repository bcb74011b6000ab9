package logger

import (
	"io"
	"os"

	"towing-system/internal/config"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const serviceName = "towing-system"

// Logger оборачивает logrus и задает единый формат логов сервиса
type Logger struct {
	*logrus.Logger
}

// serviceHook добавляет имя сервиса в каждую запись
type serviceHook struct{}

func (serviceHook) Levels() []logrus.Level { return logrus.AllLevels }

func (serviceHook) Fire(entry *logrus.Entry) error {
	if _, ok := entry.Data["service"]; !ok {
		entry.Data["service"] = serviceName
	}
	return nil
}

// New создает логгер по конфигурации.
// Неизвестный уровень трактуется как info, неизвестный формат как json.
func New(cfg *config.LoggerConfig) *Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Format == "text" {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	}

	log.AddHook(serviceHook{})
	log.SetOutput(os.Stdout)
	if cfg.File != "" {
		file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.WithError(err).Warn("Failed to open log file, using stdout only")
		} else {
			log.SetOutput(io.MultiWriter(os.Stdout, file))
		}
	}

	return &Logger{Logger: log}
}

// WithField добавляет поле к записи
func (l *Logger) WithField(key string, value interface{}) *logrus.Entry {
	return l.Logger.WithField(key, value)
}

// WithFields добавляет набор полей к записи
func (l *Logger) WithFields(fields logrus.Fields) *logrus.Entry {
	return l.Logger.WithFields(fields)
}

// WithError добавляет ошибку к записи
func (l *Logger) WithError(err error) *logrus.Entry {
	return l.Logger.WithError(err)
}

// ForAccount возвращает запись, привязанную к аккаунту
func (l *Logger) ForAccount(accountID uuid.UUID) *logrus.Entry {
	return l.Logger.WithField("account_id", accountID.String())
}
