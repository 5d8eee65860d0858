package risk

import (
	"fmt"

	"go.uber.org/zap"

	"execgate/internal/models"
	"execgate/pkg/utils"
)

// exposure.go - монитор экспозиции (уровень L3)
//
// Назначение:
// Проверяет ПРОЕКЦИЮ экспозиции - состояние, которое наступит, если
// ордер исполнится. Проверка текущего состояния бессмысленна: лимит
// должен останавливать ордер, который его нарушит, а не констатировать
// нарушение постфактум.
//
// Три оси лимитов:
//   - доля одной позиции от equity
//   - суммарная экспозиция от equity
//   - количество открытых позиций
//
// Плюс отдельные лимиты на трек (EUR/BTC/GBP): треки изолированы,
// разгром в крипте не должен съесть лимиты валютных треков.
//
// Потокобезопасность: владелец - Manager, вызовы под его мьютексом.

// WarnFunc вызывается при приближении к лимиту (зона предупреждения)
type WarnFunc func(symbol, axis string, projected, limit float64)

// ExposureMonitor - монитор экспозиции
type ExposureMonitor struct {
	limits      models.ExposureLimits
	trackLimits map[models.Track]models.TrackLimits

	// trackDailyPnl - реализованный PnL трека за торговый день.
	// Обнуляется ТОЛЬКО дневным сбросом, смену лимитов переживает.
	trackDailyPnl map[models.Track]float64

	logger *zap.Logger
	onWarn WarnFunc
}

// NewExposureMonitor создаёт монитор с заданными порогами
func NewExposureMonitor(limits models.ExposureLimits, trackLimits map[models.Track]models.TrackLimits, logger *zap.Logger) *ExposureMonitor {
	return &ExposureMonitor{
		limits:        limits,
		trackLimits:   trackLimits,
		trackDailyPnl: make(map[models.Track]float64),
		logger:        logger,
	}
}

// OnWarn регистрирует callback зоны предупреждения
func (m *ExposureMonitor) OnWarn(fn WarnFunc) { m.onWarn = fn }

// UpdateLimits применяет новые пороги
func (m *ExposureMonitor) UpdateLimits(limits models.ExposureLimits, trackLimits map[models.Track]models.TrackLimits) {
	m.limits = limits
	m.trackLimits = trackLimits
}

// RecordTradeResult накапливает реализованный PnL трека символа.
// Символ вне известных треков в дневном учёте не участвует.
func (m *ExposureMonitor) RecordTradeResult(symbol string, pnl float64) {
	if track, ok := models.TrackForSymbol(symbol); ok {
		m.trackDailyPnl[track] += pnl
	}
}

// ResetDaily начинает новый торговый день: дневной PnL треков обнуляется
func (m *ExposureMonitor) ResetDaily() {
	m.trackDailyPnl = make(map[models.Track]float64)
}

// ============================================================
// Проверка перед ордером
// ============================================================

// Check проверяет проекцию экспозиции после исполнения ордера.
//
// Уменьшающие позицию ордера пропускаются без проверок: они двигают
// экспозицию в безопасную сторону, и отклонять их при превышенных
// лимитах значило бы запереть счёт в нарушении.
func (m *ExposureMonitor) Check(rctx *models.RiskContext) *models.RiskDecision {
	if rctx.IsReducing() {
		return models.Allow("exposure")
	}

	equity := rctx.AccountEquity
	orderValue := rctx.OrderValue()

	// --- Одна позиция ---
	var existing float64
	if pos, ok := rctx.Positions[rctx.Symbol]; ok {
		existing = pos.Value()
	}
	singlePct := utils.ExposurePct(existing+orderValue, equity)
	if singlePct > m.limits.MaxSinglePosition {
		d := m.reject(rctx, "single_position", singlePct, m.limits.MaxSinglePosition)
		d.SuggestedVolume = m.suggestVolume(rctx, existing, equity)
		return d
	}
	m.warnIfNear(rctx.Symbol, "single_position", singlePct, m.limits.MaxSinglePosition)

	// --- Суммарная экспозиция ---
	var total float64
	for _, pos := range rctx.Positions {
		total += utils.ExposurePct(pos.Value(), equity)
	}
	projectedTotal := total + utils.ExposurePct(orderValue, equity)
	if projectedTotal > m.limits.MaxTotalExposure {
		return m.reject(rctx, "total_exposure", projectedTotal, m.limits.MaxTotalExposure)
	}
	m.warnIfNear(rctx.Symbol, "total_exposure", projectedTotal, m.limits.MaxTotalExposure)

	// --- Количество позиций ---
	projectedCount := len(rctx.Positions)
	if _, exists := rctx.Positions[rctx.Symbol]; !exists {
		projectedCount++
	}
	if projectedCount > m.limits.MaxPositions {
		return models.Reject("exposure", models.LevelCritical,
			fmt.Sprintf("лимит количества позиций: %d при максимуме %d", projectedCount, m.limits.MaxPositions),
			map[string]interface{}{"axis": "position_count", "projected": projectedCount, "limit": m.limits.MaxPositions})
	}

	// --- Лимиты трека ---
	if d := m.checkTrack(rctx, orderValue, equity); d != nil {
		return d
	}

	return models.Allow("exposure")
}

// checkTrack проверяет лимиты трека ордера. Символ вне известных
// треков проверяется только общими лимитами.
func (m *ExposureMonitor) checkTrack(rctx *models.RiskContext, orderValue, equity float64) *models.RiskDecision {
	tl, ok := m.trackLimits[rctx.Track]
	if !ok {
		return nil
	}

	// Дневной убыток трека: исчерпанный лимит закрывает трек для
	// открывающих ордеров до дневного сброса
	if tl.MaxDailyLossPct > 0 && equity > 0 {
		if loss := -m.trackDailyPnl[rctx.Track]; loss >= tl.MaxDailyLossPct*equity {
			m.logger.Warn("дневной лимит убытка трека исчерпан",
				zap.String("track", string(rctx.Track)),
				zap.Float64("daily_loss", loss),
				zap.Float64("limit", tl.MaxDailyLossPct*equity))
			RecordExposureReject("track_daily_loss")
			return models.Reject("exposure", models.LevelCritical,
				fmt.Sprintf("дневной убыток трека %s %.2f превысил лимит %.2f", rctx.Track, loss, tl.MaxDailyLossPct*equity),
				map[string]interface{}{"axis": "track_daily_loss", "track": rctx.Track, "daily_loss": loss})
		}
	}

	var trackTotal float64
	trackCount := 0
	for sym, pos := range rctx.Positions {
		if tr, ok := models.TrackForSymbol(sym); ok && tr == rctx.Track {
			trackTotal += utils.ExposurePct(pos.Value(), equity)
			trackCount++
		}
	}

	projected := trackTotal + utils.ExposurePct(orderValue, equity)
	if projected > tl.MaxExposurePct {
		return m.reject(rctx, "track_exposure", projected, tl.MaxExposurePct)
	}

	var existing float64
	if pos, ok := rctx.Positions[rctx.Symbol]; ok {
		existing = pos.Value()
	} else {
		trackCount++
	}
	if trackCount > tl.MaxPositions {
		return models.Reject("exposure", models.LevelCritical,
			fmt.Sprintf("лимит позиций трека %s: %d при максимуме %d", rctx.Track, trackCount, tl.MaxPositions),
			map[string]interface{}{"axis": "track_position_count", "track": rctx.Track})
	}

	singlePct := utils.ExposurePct(existing+orderValue, equity)
	if singlePct > tl.MaxSinglePositionPct {
		return m.reject(rctx, "track_single_position", singlePct, tl.MaxSinglePositionPct)
	}

	return nil
}

// ============================================================
// Внутреннее
// ============================================================

func (m *ExposureMonitor) reject(rctx *models.RiskContext, axis string, projected, limit float64) *models.RiskDecision {
	m.logger.Warn("экспозиция превышает лимит",
		zap.String("symbol", rctx.Symbol),
		zap.String("axis", axis),
		zap.Float64("projected", projected),
		zap.Float64("limit", limit))
	RecordExposureReject(axis)
	return models.Reject("exposure", models.LevelCritical,
		fmt.Sprintf("экспозиция %s: проекция %.2f%% превышает лимит %.2f%%", axis, projected*100, limit*100),
		map[string]interface{}{"axis": axis, "projected": projected, "limit": limit})
}

// suggestVolume возвращает наибольший объём, проекция которого ещё
// укладывается в лимит одной позиции. 0 - не помещается даже MinVolume.
func (m *ExposureMonitor) suggestVolume(rctx *models.RiskContext, existing, equity float64) float64 {
	if rctx.Price <= 0 {
		return 0
	}
	room := m.limits.MaxSinglePosition*equity - existing
	if room <= 0 {
		return 0
	}
	fit := utils.RoundToLotStep(room/rctx.Price, models.MinVolume)
	if fit < models.MinVolume {
		return 0
	}
	return utils.ClampVolume(fit, models.MinVolume, rctx.Volume)
}

// warnIfNear эмитит предупреждение при входе в зону warning_threshold
func (m *ExposureMonitor) warnIfNear(symbol, axis string, projected, limit float64) {
	if m.onWarn == nil {
		return
	}
	if projected >= limit*m.limits.WarningThreshold && projected <= limit {
		m.onWarn(symbol, axis, projected, limit)
	}
}
