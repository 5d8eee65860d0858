// Package killswitch реализует аварийный стоп с долговременным файлом.
//
// Файл аварийного стопа переживает рестарт процесса: пока он существует,
// торговля запрещена. Снять стоп можно только явной командой оператора -
// никакой автоматики, которая могла бы "передумать" за человека.
package killswitch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Формат файла фиксирован: его читают и люди, и скрипты мониторинга.
//
//	KILL_SWITCH_ACTIVE
//	Timestamp: <ISO-8601>
//	Reason: <string>
//	DO NOT MODIFY - Manual reset required
const (
	fileHeader  = "KILL_SWITCH_ACTIVE"
	fileFooter  = "DO NOT MODIFY - Manual reset required"
	timePrefix  = "Timestamp: "
	causePrefix = "Reason: "
)

// Status - текущее состояние аварийного стопа
type Status struct {
	Active      bool      `json:"active"`
	ActivatedAt time.Time `json:"activated_at,omitempty"`
	Reason      string    `json:"reason,omitempty"`
}

// KillSwitch - аварийный стоп, привязанный к файлу на диске.
//
// Все операции потокобезопасны. Состояние в памяти - кэш;
// источник истины - файл.
type KillSwitch struct {
	mu     sync.RWMutex
	path   string
	status Status
	logger *zap.Logger
}

// New создаёт аварийный стоп и восстанавливает состояние с диска.
//
// Если файл существует, но не читается или повреждён, стоп считается
// АКТИВНЫМ: непонятное состояние трактуем в сторону запрета торговли.
func New(path string, logger *zap.Logger) (*KillSwitch, error) {
	ks := &KillSwitch{
		path:   path,
		logger: logger,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ks, nil
		}
		// Файл есть, но не читается - считаем стоп активным
		ks.status = Status{Active: true, Reason: "kill switch file unreadable: " + err.Error()}
		logger.Error("файл аварийного стопа не читается, стоп считается активным",
			zap.String("path", path), zap.Error(err))
		return ks, nil
	}

	st, parseErr := parse(string(data))
	if parseErr != nil {
		ks.status = Status{Active: true, Reason: "kill switch file corrupted"}
		logger.Error("файл аварийного стопа повреждён, стоп считается активным",
			zap.String("path", path), zap.Error(parseErr))
		return ks, nil
	}

	ks.status = st
	logger.Warn("аварийный стоп активен с прошлого запуска",
		zap.Time("activated_at", st.ActivatedAt),
		zap.String("reason", st.Reason))
	return ks, nil
}

// IsActive сообщает, активен ли аварийный стоп
func (ks *KillSwitch) IsActive() bool {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	return ks.status.Active
}

// GetStatus возвращает копию текущего состояния
func (ks *KillSwitch) GetStatus() Status {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	return ks.status
}

// Activate взводит аварийный стоп и фиксирует его на диске.
//
// Операция односторонняя: повторный вызов при активном стопе ничего
// не делает и возвращает false. Запись на диск атомарная: временный
// файл + rename, чтобы наблюдатель никогда не увидел полузаписанный файл.
//
// Возвращает true, если стоп был взведён этим вызовом.
func (ks *KillSwitch) Activate(reason string) (bool, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	if ks.status.Active {
		return false, nil
	}

	now := time.Now().UTC()
	if err := ks.writeFile(now, reason); err != nil {
		// Диск отказал, но стоп всё равно взводим в памяти:
		// торговлю надо остановить прямо сейчас
		ks.status = Status{Active: true, ActivatedAt: now, Reason: reason}
		ks.logger.Error("не удалось записать файл аварийного стопа",
			zap.String("path", ks.path), zap.Error(err))
		return true, fmt.Errorf("ошибка записи файла аварийного стопа: %w", err)
	}

	ks.status = Status{Active: true, ActivatedAt: now, Reason: reason}
	ks.logger.Error("АВАРИЙНЫЙ СТОП АКТИВИРОВАН",
		zap.String("reason", reason),
		zap.Time("activated_at", now))
	return true, nil
}

// Reset снимает аварийный стоп. Только явный вызов оператора.
// Если стоп не активен, вызов безвреден.
func (ks *KillSwitch) Reset() error {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	if !ks.status.Active {
		return nil
	}

	if err := os.Remove(ks.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления файла аварийного стопа: %w", err)
	}

	ks.logger.Warn("аварийный стоп снят оператором",
		zap.String("previous_reason", ks.status.Reason))
	ks.status = Status{}
	return nil
}

// ============================================================
// Работа с файлом
// ============================================================

// writeFile атомарно записывает файл стопа: temp + rename
func (ks *KillSwitch) writeFile(at time.Time, reason string) error {
	if dir := filepath.Dir(ks.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	content := fmt.Sprintf("%s\n%s%s\n%s%s\n%s",
		fileHeader,
		timePrefix, at.Format(time.RFC3339),
		causePrefix, reason,
		fileFooter)

	tmp := ks.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, ks.path)
}

// parse разбирает содержимое файла стопа
func parse(content string) (Status, error) {
	lines := strings.Split(strings.TrimSpace(content), "\n")
	if len(lines) < 4 || strings.TrimSpace(lines[0]) != fileHeader {
		return Status{}, fmt.Errorf("неожиданный формат файла аварийного стопа")
	}

	st := Status{Active: true}

	tsLine := strings.TrimSpace(lines[1])
	if !strings.HasPrefix(tsLine, timePrefix) {
		return Status{}, fmt.Errorf("отсутствует строка Timestamp")
	}
	ts, err := time.Parse(time.RFC3339, strings.TrimPrefix(tsLine, timePrefix))
	if err != nil {
		return Status{}, fmt.Errorf("некорректный timestamp: %w", err)
	}
	st.ActivatedAt = ts

	reasonLine := strings.TrimSpace(lines[2])
	if !strings.HasPrefix(reasonLine, causePrefix) {
		return Status{}, fmt.Errorf("отсутствует строка Reason")
	}
	st.Reason = strings.TrimPrefix(reasonLine, causePrefix)

	return st, nil
}
