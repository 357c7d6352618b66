// Package store implements dicezap.Store with GORM over SQLite, using a
// migrated relational schema for rounds, bets, and the single-row nonce
// pointer tables.
package store

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/chosanghyuk/dicezap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// pointerRowID is the constant key used by the two single-row pointer
// tables, active_nonce and latest_expired_nonce.
const pointerRowID = 0

// NonceRecord is the GORM model for the append-only nonces relation.
type NonceRecord struct {
	EventID string `gorm:"column:event_id;primaryKey"`
	Nonce   string `gorm:"column:nonce;not null"` // 64-char lowercase hex
}

func (NonceRecord) TableName() string { return "nonces" }

// ActiveNonceRecord is the single-row pointer to the nonce currently
// accepting bets.
type ActiveNonceRecord struct {
	ID           uint   `gorm:"primaryKey;autoIncrement:false"`
	NonceEventID string `gorm:"column:nonce_event_id;not null"`
}

func (ActiveNonceRecord) TableName() string { return "active_nonce" }

// LatestExpiredNonceRecord is the single-row pointer to the most recently
// expired nonce whose reveal may still be pending.
type LatestExpiredNonceRecord struct {
	ID           uint   `gorm:"primaryKey;autoIncrement:false"`
	NonceEventID string `gorm:"column:nonce_event_id;not null"`
}

func (LatestExpiredNonceRecord) TableName() string { return "latest_expired_nonce" }

// ZapRecord is the GORM model for one bet, keyed by Lightning payment
// hash.
type ZapRecord struct {
	PaymentHash          string    `gorm:"column:payment_hash;primaryKey"`
	Roller               string    `gorm:"column:roller;not null;index"`
	Invoice               string    `gorm:"column:invoice;not null"`
	RequestEventID        string    `gorm:"column:request_event_id"`
	RequestEventPubKey    string    `gorm:"column:request_event_pubkey"`
	RequestEventContent   string    `gorm:"column:request_event_content"`
	RequestEventTagsJSON  string    `gorm:"column:request_event_tags_json"`
	RequestEventCreatedAt time.Time `gorm:"column:request_event_created_at"`
	RequestEventSig       string    `gorm:"column:request_event_sig"`
	MultiplierNoteID      string    `gorm:"column:multiplier_note_id"`
	NonceCommitmentNoteID string    `gorm:"column:nonce_commitment_note_id;index"`
	BetState              string    `gorm:"column:bet_state;not null"`
	Idx                    int       `gorm:"column:idx;not null"`
	AmountMsat             uint64    `gorm:"column:amount_msat;not null"`
	BetTimestamp           time.Time `gorm:"column:bet_timestamp;not null;index"`
}

func (ZapRecord) TableName() string { return "zaps" }

// Store implements dicezap.Store over a GORM/SQLite handle.
type Store struct {
	db *gorm.DB
}

// Open opens (or creates) a SQLite database at path and migrates the
// schema. SQLite matches the single-process, single-writer model this
// daemon runs under.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite store: %w", err)
	}
	return NewWithDB(db)
}

// NewWithDB wraps an existing GORM handle and migrates the schema; Open
// calls it on the handle it opens.
func NewWithDB(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&NonceRecord{}, &ActiveNonceRecord{}, &LatestExpiredNonceRecord{}, &ZapRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying DB: %w", err)
	}
	return sqlDB.Close()
}

func toRecord(bet dicezap.Bet) ZapRecord {
	tagsJSON := encodeTags(bet.Request.Tags)
	return ZapRecord{
		PaymentHash:           bet.PaymentHash,
		Roller:                bet.Roller,
		Invoice:               bet.Invoice,
		RequestEventID:        bet.Request.ID,
		RequestEventPubKey:    bet.Request.PubKey,
		RequestEventContent:   bet.Request.Content,
		RequestEventTagsJSON:  tagsJSON,
		RequestEventCreatedAt: bet.Request.CreatedAt,
		RequestEventSig:       bet.Request.Sig,
		MultiplierNoteID:      bet.MultiplierNoteID,
		NonceCommitmentNoteID: bet.NonceCommitmentID,
		BetState:              string(bet.BetState),
		Idx:                   bet.Index,
		AmountMsat:            bet.AmountMsat,
		BetTimestamp:          bet.BetTimestamp,
	}
}

func fromRecord(r ZapRecord) dicezap.Bet {
	return dicezap.Bet{
		PaymentHash: r.PaymentHash,
		Roller:      r.Roller,
		Invoice:     r.Invoice,
		Request: dicezap.Event{
			ID:        r.RequestEventID,
			PubKey:    r.RequestEventPubKey,
			Content:   r.RequestEventContent,
			Tags:      decodeTags(r.RequestEventTagsJSON),
			CreatedAt: r.RequestEventCreatedAt,
			Sig:       r.RequestEventSig,
		},
		MultiplierNoteID:  r.MultiplierNoteID,
		NonceCommitmentID: r.NonceCommitmentNoteID,
		BetState:          dicezap.BetState(r.BetState),
		Index:             r.Idx,
		AmountMsat:        r.AmountMsat,
		BetTimestamp:      r.BetTimestamp,
	}
}

// UpsertBet implements dicezap.Store.
func (s *Store) UpsertBet(ctx context.Context, bet dicezap.Bet) error {
	record := toRecord(bet)
	result := s.db.WithContext(ctx).Save(&record)
	if result.Error != nil {
		return fmt.Errorf("failed to upsert bet %s: %w", bet.PaymentHash, result.Error)
	}
	return nil
}

// GetBet implements dicezap.Store.
func (s *Store) GetBet(ctx context.Context, paymentHash string) (dicezap.Bet, bool, error) {
	var record ZapRecord
	result := s.db.WithContext(ctx).Where("payment_hash = ?", paymentHash).First(&record)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return dicezap.Bet{}, false, nil
		}
		return dicezap.Bet{}, false, fmt.Errorf("failed to get bet %s: %w", paymentHash, result.Error)
	}
	return fromRecord(record), true, nil
}

// GetBetsByCommitment implements dicezap.Store.
func (s *Store) GetBetsByCommitment(ctx context.Context, commitmentID string) ([]dicezap.Bet, error) {
	var records []ZapRecord
	result := s.db.WithContext(ctx).Where("nonce_commitment_note_id = ?", commitmentID).Find(&records)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get bets by commitment %s: %w", commitmentID, result.Error)
	}
	bets := make([]dicezap.Bet, len(records))
	for i, r := range records {
		bets[i] = fromRecord(r)
	}
	return bets, nil
}

// GetBetsInTimeWindow implements dicezap.Store.
func (s *Store) GetBetsInTimeWindow(ctx context.Context, t0, t1 time.Time) ([]dicezap.Bet, error) {
	var records []ZapRecord
	result := s.db.WithContext(ctx).Where("bet_timestamp BETWEEN ? AND ?", t0, t1).Order("bet_timestamp ASC").Find(&records)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get bets in time window: %w", result.Error)
	}
	bets := make([]dicezap.Bet, len(records))
	for i, r := range records {
		bets[i] = fromRecord(r)
	}
	return bets, nil
}

// CountBetsByRoller implements dicezap.Store.
func (s *Store) CountBetsByRoller(ctx context.Context, commitmentID string, roller string) (int, error) {
	var count int64
	result := s.db.WithContext(ctx).Model(&ZapRecord{}).
		Where("nonce_commitment_note_id = ? AND roller = ?", commitmentID, roller).
		Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to count bets by roller: %w", result.Error)
	}
	return int(count), nil
}

// InsertNonce implements dicezap.Store.
func (s *Store) InsertNonce(ctx context.Context, commitmentID string, nonce [32]byte) error {
	record := NonceRecord{EventID: commitmentID, Nonce: hex.EncodeToString(nonce[:])}
	result := s.db.WithContext(ctx).Create(&record)
	if result.Error != nil {
		return fmt.Errorf("failed to insert nonce for %s: %w", commitmentID, result.Error)
	}
	return nil
}

// SetActiveNonce implements dicezap.Store.
func (s *Store) SetActiveNonce(ctx context.Context, commitmentID string) error {
	record := ActiveNonceRecord{ID: pointerRowID, NonceEventID: commitmentID}
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&record)
	if result.Error != nil {
		return fmt.Errorf("failed to set active nonce to %s: %w", commitmentID, result.Error)
	}
	return nil
}

// ClearActiveNonce implements dicezap.Store.
func (s *Store) ClearActiveNonce(ctx context.Context) (string, bool, error) {
	var record ActiveNonceRecord
	result := s.db.WithContext(ctx).Where("id = ?", pointerRowID).First(&record)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read active nonce: %w", result.Error)
	}
	if err := s.db.WithContext(ctx).Delete(&ActiveNonceRecord{}, pointerRowID).Error; err != nil {
		return "", false, fmt.Errorf("failed to clear active nonce: %w", err)
	}
	return record.NonceEventID, true, nil
}

// SetLatestExpiredNonce implements dicezap.Store.
func (s *Store) SetLatestExpiredNonce(ctx context.Context, commitmentID string) error {
	record := LatestExpiredNonceRecord{ID: pointerRowID, NonceEventID: commitmentID}
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&record)
	if result.Error != nil {
		return fmt.Errorf("failed to set latest expired nonce to %s: %w", commitmentID, result.Error)
	}
	return nil
}

// GetLatestExpiredNonce implements dicezap.Store.
func (s *Store) GetLatestExpiredNonce(ctx context.Context) (dicezap.Round, bool, error) {
	var record LatestExpiredNonceRecord
	result := s.db.WithContext(ctx).Where("id = ?", pointerRowID).First(&record)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return dicezap.Round{}, false, nil
		}
		return dicezap.Round{}, false, fmt.Errorf("failed to read latest expired nonce: %w", result.Error)
	}
	return s.GetRound(ctx, record.NonceEventID)
}

// GetActiveNonce implements dicezap.Store.
func (s *Store) GetActiveNonce(ctx context.Context) (dicezap.Round, bool, error) {
	var record ActiveNonceRecord
	result := s.db.WithContext(ctx).Where("id = ?", pointerRowID).First(&record)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return dicezap.Round{}, false, nil
		}
		return dicezap.Round{}, false, fmt.Errorf("failed to read active nonce: %w", result.Error)
	}
	return s.GetRound(ctx, record.NonceEventID)
}

// GetRound implements dicezap.Store.
func (s *Store) GetRound(ctx context.Context, commitmentID string) (dicezap.Round, bool, error) {
	var record NonceRecord
	result := s.db.WithContext(ctx).Where("event_id = ?", commitmentID).First(&record)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return dicezap.Round{}, false, nil
		}
		return dicezap.Round{}, false, fmt.Errorf("failed to read round %s: %w", commitmentID, result.Error)
	}
	raw, err := hex.DecodeString(record.Nonce)
	if err != nil || len(raw) != 32 {
		return dicezap.Round{}, false, fmt.Errorf("corrupt nonce stored for %s", commitmentID)
	}
	var nonce [32]byte
	copy(nonce[:], raw)
	return dicezap.Round{CommitmentID: commitmentID, Nonce: nonce}, true, nil
}

var _ dicezap.Store = (*Store)(nil)
