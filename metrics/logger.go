package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Logger interface {
	Log(info *JobInfo)
}

// ZapLogger writes job records through the process logger.
type ZapLogger struct {
	log *zap.Logger
}

func NewZapLogger(log *zap.Logger) *ZapLogger {
	return &ZapLogger{log: log}
}

func (l *ZapLogger) Log(info *JobInfo) {
	info.normaliseGeometry()
	fields := []zap.Field{
		zap.String("job", info.Job),
		zap.String("operation", info.Operation),
		zap.Duration("duration", info.Duration),
		zap.Int("truncated_rows", info.TruncatedRows),
		zap.Int("truncated_cols", info.TruncatedCols),
		zap.Int("missing_cells", info.MissingCells),
	}
	if info.Input != nil {
		fields = append(fields, zap.String("input", info.Input.Path))
	}
	for _, o := range info.Outputs {
		fields = append(fields, zap.String("output", o.Path))
	}
	if info.Error != "" {
		l.log.Warn("job metrics", append(fields, zap.String("error", info.Error))...)
		return
	}
	l.log.Info("job metrics", fields...)
}

const defaultQueueSize = 2000
const defaultMaxLogFileSize = 1024 * 1024 * 1024
const defaultMaxLogFiles = 10

// FileLogger appends JSON job records to LogDir/metrics, rotating the
// file once it reaches MaxLogFileSize and keeping at most MaxLogFiles
// rotated copies.
type FileLogger struct {
	MetricsQueue   chan *JobInfo
	LogDir         string
	MaxLogFileSize int64
	MaxLogFiles    int

	log  *zap.Logger
	done sync.WaitGroup
}

func NewFileLogger(logDir string, maxLogFileSize int64, maxLogFiles int, log *zap.Logger) (*FileLogger, error) {
	if maxLogFileSize <= 0 {
		maxLogFileSize = defaultMaxLogFileSize
	}
	if maxLogFiles <= 0 {
		maxLogFiles = defaultMaxLogFiles
	}
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("metrics log dir: %w", err)
	}
	logger := &FileLogger{
		MetricsQueue:   make(chan *JobInfo, defaultQueueSize),
		LogDir:         logDir,
		MaxLogFileSize: maxLogFileSize,
		MaxLogFiles:    maxLogFiles,
		log:            log,
	}

	f, err := logger.openLogFile()
	if err != nil {
		return nil, fmt.Errorf("metrics log open: %w", err)
	}

	logger.done.Add(1)
	go logger.startLogWriter(f)
	return logger, nil
}

func (l *FileLogger) Log(info *JobInfo) {
	l.MetricsQueue <- info
}

// Close drains the queue and closes the log file.
func (l *FileLogger) Close() {
	close(l.MetricsQueue)
	l.done.Wait()
}

func (l *FileLogger) startLogWriter(f *os.File) {
	defer l.done.Done()
	defer func() {
		if f != nil {
			f.Close()
		}
	}()

	for info := range l.MetricsQueue {
		infoStr, err := info.ToJSON()
		if err != nil {
			l.log.Error("metrics: info.ToJSON() error", zap.Error(err))
			continue
		}

		f, err = l.tryRotateLogFile(f)
		if err != nil {
			continue
		}

		if _, err := f.WriteString(infoStr); err != nil {
			l.log.Error("metrics: write error", zap.Error(err))
			continue
		}
		f.Sync()
	}
}

func (l *FileLogger) logFilePath() string {
	return filepath.Join(l.LogDir, "metrics")
}

func (l *FileLogger) rotatedPath(idx int) string {
	return filepath.Join(l.LogDir, fmt.Sprintf("metrics.%d", idx))
}

func (l *FileLogger) openLogFile() (*os.File, error) {
	return os.OpenFile(l.logFilePath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}

// tryRotateLogFile moves the current file to a rotation slot once it
// has reached MaxLogFileSize and opens a fresh one. Rotation errors are
// logged and the current file is kept.
func (l *FileLogger) tryRotateLogFile(currFile *os.File) (*os.File, error) {
	fi, err := currFile.Stat()
	if err != nil {
		l.log.Error("metrics: log rotation error", zap.Error(err))
		return currFile, nil
	}
	if fi.Size() < l.MaxLogFileSize {
		return currFile, nil
	}

	target, err := l.rotationTarget()
	if err != nil {
		l.log.Error("metrics: log rotation error", zap.Error(err))
		return currFile, nil
	}

	currFile.Close()
	if err := os.Rename(l.logFilePath(), target); err != nil {
		l.log.Error("metrics: log rotation error", zap.Error(err))
	} else {
		l.log.Debug("metrics: log file rotated", zap.String("path", target))
	}

	f, err := l.openLogFile()
	if err != nil {
		l.log.Error("metrics: log rotation error", zap.Error(err))
	}
	return f, err
}

// rotationTarget returns the lowest free metrics.N slot below
// MaxLogFiles. With every slot taken, the least recently written one is
// removed and reused.
func (l *FileLogger) rotationTarget() (string, error) {
	entries, err := os.ReadDir(l.LogDir)
	if err != nil {
		return "", err
	}

	taken := make(map[int]time.Time, l.MaxLogFiles)
	for _, ent := range entries {
		idx, ok := rotatedIndex(ent.Name())
		if !ok || idx >= l.MaxLogFiles || !ent.Type().IsRegular() {
			continue
		}
		fi, err := ent.Info()
		if err != nil {
			continue
		}
		taken[idx] = fi.ModTime()
	}

	oldest := 0
	for idx := 0; idx < l.MaxLogFiles; idx++ {
		modTime, ok := taken[idx]
		if !ok {
			return l.rotatedPath(idx), nil
		}
		if modTime.Before(taken[oldest]) {
			oldest = idx
		}
	}

	target := l.rotatedPath(oldest)
	l.log.Debug("metrics: maximum number of log files reached", zap.String("overwriting", target))
	return target, os.Remove(target)
}

// rotatedIndex parses the slot number of a rotated metrics file name.
func rotatedIndex(name string) (int, bool) {
	suffix, ok := strings.CutPrefix(name, "metrics.")
	if !ok {
		return 0, false
	}
	idx, err := strconv.Atoi(suffix)
	if err != nil || idx < 0 {
		return 0, false
	}
	return idx, true
}
