package usecase

import (
	"context"
	"crypto/hmac"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	accessDomain "github.com/allisson/cardvault/internal/access/domain"
	"github.com/allisson/cardvault/internal/database"
	apperrors "github.com/allisson/cardvault/internal/errors"
	hsmDomain "github.com/allisson/cardvault/internal/hsm/domain"
	hsmService "github.com/allisson/cardvault/internal/hsm/service"
	keysDomain "github.com/allisson/cardvault/internal/keys/domain"
	vaultDomain "github.com/allisson/cardvault/internal/vault/domain"
	vaultService "github.com/allisson/cardvault/internal/vault/service"
)

// maxTokenRegenerations bounds how often a colliding token is regenerated.
const maxTokenRegenerations = 3

// errFingerprintTaken reports that another token claimed the fingerprint between the
// dedup check and the insert.
var errFingerprintTaken = apperrors.Wrap(apperrors.ErrConflict, "card fingerprint already indexed")

// Config tunes the vault.
type Config struct {
	TokenFormat         vaultDomain.TokenFormat
	TokenLength         int
	TokenExpiryPeriod   time.Duration
	RotationConcurrency int
	RotationRatePerSec  float64
	LockStripes         int

	// Now overrides the clock. Nil means time.Now.
	Now func() time.Time
}

type vaultUseCase struct {
	config           Config
	txManager        database.TxManager
	records          RecordRepository
	fingerprints     FingerprintRepository
	keys             KeyManager
	hsm              hsmService.Module
	access           AccessController
	generator        vaultService.TokenGenerator
	tokenLocks       *vaultService.KeyedLocker
	fingerprintLocks *vaultService.KeyedLocker
	rotationMu       sync.Mutex
	logger           *slog.Logger
}

// NewVaultUseCase creates the vault use case.
func NewVaultUseCase(
	config Config,
	txManager database.TxManager,
	records RecordRepository,
	fingerprints FingerprintRepository,
	keys KeyManager,
	hsm hsmService.Module,
	access AccessController,
	logger *slog.Logger,
) (VaultUseCase, error) {
	if config.TokenLength == 0 {
		config.TokenLength = 24
	}
	generator, err := vaultService.NewTokenGenerator(config.TokenFormat, config.TokenLength)
	if err != nil {
		return nil, err
	}
	if config.TokenExpiryPeriod <= 0 {
		config.TokenExpiryPeriod = 365 * 24 * time.Hour
	}
	if config.RotationConcurrency <= 0 {
		config.RotationConcurrency = 1
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &vaultUseCase{
		config:           config,
		txManager:        txManager,
		records:          records,
		fingerprints:     fingerprints,
		keys:             keys,
		hsm:              hsm,
		access:           access,
		generator:        generator,
		tokenLocks:       vaultService.NewKeyedLocker(config.LockStripes),
		fingerprintLocks: vaultService.NewKeyedLocker(config.LockStripes),
		logger:           logger,
	}, nil
}

func (v *vaultUseCase) now() time.Time {
	return v.config.Now().UTC()
}

// authorize checks ac and records the denial when it fails. A denied call gets no
// further audit entry.
func (v *vaultUseCase) authorize(
	ctx context.Context,
	op accessDomain.Operation,
	ac accessDomain.Context,
	token string,
) error {
	if err := v.access.Authorize(ctx, ac, op); err != nil {
		v.access.RecordAccess(ctx, op, ac, token, accessDomain.OutcomeDenied, err.Error())
		return err
	}
	return nil
}

// recordOutcome writes the audit entry for an authorized call.
func (v *vaultUseCase) recordOutcome(
	ctx context.Context,
	op accessDomain.Operation,
	ac accessDomain.Context,
	token, reason string,
	err error,
) {
	if err != nil {
		v.access.RecordAccess(ctx, op, ac, token, accessDomain.OutcomeError, err.Error())
		return
	}
	v.access.RecordAccess(ctx, op, ac, token, accessDomain.OutcomeAllowed, reason)
}

// fingerprint derives the deduplication key of pan with the active hmac key.
func (v *vaultUseCase) fingerprint(ctx context.Context, pan string) (string, error) {
	keyID, err := v.keys.GetActiveKey(ctx, keysDomain.PurposeHMAC)
	if err != nil {
		return "", fmt.Errorf("failed to resolve fingerprint key: %w", err)
	}

	input := vaultService.FingerprintInput(pan)
	defer clear(input)

	signature, err := v.hsm.Sign(ctx, keyID, input)
	if err != nil {
		return "", fmt.Errorf("failed to fingerprint card: %w", err)
	}
	return hex.EncodeToString(signature), nil
}

type sealedCard struct {
	payload vaultDomain.EncryptedPayload
	tag     []byte
}

// seal encrypts card under keyID with the token as associated data and computes
// the integrity tag over the plaintext payload.
func (v *vaultUseCase) seal(
	ctx context.Context,
	keyID, token string,
	card vaultDomain.CardData,
) (*sealedCard, error) {
	payload, err := vaultService.EncodePayload(card)
	if err != nil {
		return nil, err
	}
	defer clear(payload)

	sealed, err := v.hsm.Encrypt(ctx, keyID, payload, []byte(token))
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt card payload: %w", err)
	}

	input := vaultService.IntegrityInput(token, payload)
	defer clear(input)

	tag, err := v.hsm.Sign(ctx, keyID, input)
	if err != nil {
		return nil, fmt.Errorf("failed to compute integrity tag: %w", err)
	}

	return &sealedCard{
		payload: vaultDomain.EncryptedPayload{
			Ciphertext: sealed.Ciphertext,
			Nonce:      sealed.Nonce,
			Tag:        sealed.Tag,
		},
		tag: tag,
	}, nil
}

// open decrypts record with its own key and runs both tamper checks. The caller
// must hold the token lock.
func (v *vaultUseCase) open(ctx context.Context, record *vaultDomain.VaultRecord) (*vaultDomain.CardData, error) {
	if _, err := v.keys.GetDecryptionKey(ctx, record.EncryptionKeyID); err != nil {
		return nil, fmt.Errorf("failed to resolve decryption key: %w", err)
	}

	plaintext, err := v.hsm.Decrypt(ctx, record.EncryptionKeyID, &hsmDomain.Sealed{
		Ciphertext: record.Payload.Ciphertext,
		Nonce:      record.Payload.Nonce,
		Tag:        record.Payload.Tag,
	}, []byte(record.Token))
	if err != nil {
		if errors.Is(err, hsmDomain.ErrAuthenticationFailed) {
			return nil, v.flagIntegrity(ctx, record, "payload authentication failed")
		}
		return nil, fmt.Errorf("failed to decrypt card payload: %w", err)
	}
	defer clear(plaintext)

	input := vaultService.IntegrityInput(record.Token, plaintext)
	defer clear(input)

	expected, err := v.hsm.Sign(ctx, record.EncryptionKeyID, input)
	if err != nil {
		return nil, fmt.Errorf("failed to compute integrity tag: %w", err)
	}
	if !hmac.Equal(expected, record.IntegrityTag) {
		return nil, v.flagIntegrity(ctx, record, "integrity tag mismatch")
	}

	return vaultService.DecodePayload(plaintext)
}

// flagIntegrity marks record as tampered, raises an alert and returns
// ErrIntegrityCheckFailed.
func (v *vaultUseCase) flagIntegrity(ctx context.Context, record *vaultDomain.VaultRecord, check string) error {
	v.logger.Error("card record failed integrity check",
		slog.String("token", record.Token),
		slog.String("key_id", record.EncryptionKeyID),
		slog.String("check", check),
		slog.Bool("alert", true),
	)

	if record.IntegrityFlaggedAt == nil {
		flaggedAt := v.now()
		record.IntegrityFlaggedAt = &flaggedAt
		if err := v.records.Put(context.WithoutCancel(ctx), record); err != nil {
			v.logger.Error("failed to flag card record",
				slog.String("token", record.Token),
				slog.Any("error", err),
			)
		}
	}

	return vaultDomain.ErrIntegrityCheckFailed
}

// activeRecordFor returns the non-expired record indexed under fingerprint, or nil.
// indexed is the token the index entry points to, even when that record is gone or
// expired.
func (v *vaultUseCase) activeRecordFor(
	ctx context.Context,
	fingerprint string,
	now time.Time,
) (record *vaultDomain.VaultRecord, indexed string, err error) {
	entry, err := v.fingerprints.Get(ctx, fingerprint)
	if errors.Is(err, vaultDomain.ErrCardNotFound) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to read fingerprint index: %w", err)
	}

	record, err = v.records.Get(ctx, entry.Token)
	if errors.Is(err, vaultDomain.ErrCardNotFound) {
		return nil, entry.Token, nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to read card record: %w", err)
	}
	if record.IsExpired(now) {
		return nil, entry.Token, nil
	}
	return record, entry.Token, nil
}

// loadActive reads the record for token and rejects expired tokens.
func (v *vaultUseCase) loadActive(
	ctx context.Context,
	token string,
	now time.Time,
) (*vaultDomain.VaultRecord, error) {
	if token == "" {
		return nil, vaultDomain.ErrInvalidToken
	}
	record, err := v.records.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	if record.IsExpired(now) {
		return nil, vaultDomain.ErrTokenExpired
	}
	return record, nil
}

// newToken generates a token that no record uses yet.
func (v *vaultUseCase) newToken(ctx context.Context) (string, error) {
	for attempt := 0; attempt <= maxTokenRegenerations; attempt++ {
		token, err := v.generator.Generate()
		if err != nil {
			return "", fmt.Errorf("failed to generate token: %w", err)
		}

		_, err = v.records.Get(ctx, token)
		if errors.Is(err, vaultDomain.ErrCardNotFound) {
			return token, nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to check token uniqueness: %w", err)
		}

		v.logger.Warn("generated token collides with an existing record",
			slog.Int("attempt", attempt+1),
		)
	}

	v.logger.Error("token generator keeps producing existing tokens",
		slog.String("token_format", string(v.config.TokenFormat)),
		slog.Bool("alert", true),
	)
	return "", vaultDomain.ErrDuplicateToken
}

func storeResult(record *vaultDomain.VaultRecord, existing bool) *vaultDomain.StoreResult {
	return &vaultDomain.StoreResult{
		Token:          record.Token,
		Brand:          record.Brand,
		Last4:          record.Last4,
		ExpiryDisplay:  record.ExpiryDisplay,
		TokenExpiresAt: record.ExpiresAt,
		Existing:       existing,
	}
}

// StoreCard validates and tokenizes card. The dedup check and insert run under the
// fingerprint lock, and the index entry is claimed rather than overwritten, so
// concurrent stores of one card yield one token across processes too.
func (v *vaultUseCase) StoreCard(
	ctx context.Context,
	card vaultDomain.CardData,
	opts vaultDomain.StoreOptions,
	ac accessDomain.Context,
) (result *vaultDomain.StoreResult, err error) {
	const op = accessDomain.OpStoreCard
	if err := v.authorize(ctx, op, ac, ""); err != nil {
		return nil, err
	}
	defer func() {
		token := ""
		if result != nil {
			token = result.Token
		}
		v.recordOutcome(ctx, op, ac, token, "", err)
	}()

	now := v.now()
	card = card.Normalized()
	brand, err := card.Validate(now)
	if err != nil {
		return nil, err
	}

	fingerprint, err := v.fingerprint(ctx, card.PAN)
	if err != nil {
		return nil, err
	}

	unlock := v.fingerprintLocks.Lock(fingerprint)
	defer unlock()

	var indexed string
	if !opts.ForceNew {
		var existing *vaultDomain.VaultRecord
		existing, indexed, err = v.activeRecordFor(ctx, fingerprint, now)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return storeResult(existing, true), nil
		}
	}

	keyID, err := v.keys.GetActiveKey(ctx, keysDomain.PurposePayment)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve payment key: %w", err)
	}

	token, err := v.newToken(ctx)
	if err != nil {
		return nil, err
	}

	sealed, err := v.seal(ctx, keyID, token, card)
	if err != nil {
		return nil, err
	}

	ttl := v.config.TokenExpiryPeriod
	if opts.TTL > 0 {
		ttl = opts.TTL
	}

	record := &vaultDomain.VaultRecord{
		Token:           token,
		Payload:         sealed.payload,
		IntegrityTag:    sealed.tag,
		Brand:           brand,
		Last4:           vaultDomain.Last4(card.PAN),
		ExpiryDisplay:   vaultDomain.ExpiryDisplay(card.ExpiryMonth, card.ExpiryYear),
		Fingerprint:     fingerprint,
		EncryptionKeyID: keyID,
		CreatedAt:       now,
		UpdatedAt:       now,
		ExpiresAt:       now.Add(ttl),
	}
	entry := &vaultDomain.FingerprintEntry{
		Fingerprint: fingerprint,
		Token:       token,
		CreatedAt:   now,
	}

	err = v.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := v.records.Create(ctx, record); err != nil {
			return err
		}
		if opts.ForceNew {
			return v.fingerprints.Put(ctx, entry)
		}
		claimed, err := v.fingerprints.Claim(ctx, entry, indexed)
		if err != nil {
			return err
		}
		if !claimed {
			return errFingerprintTaken
		}
		return nil
	})
	if errors.Is(err, errFingerprintTaken) {
		return v.storeLost(ctx, record, now)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to store card: %w", err)
	}

	v.logger.Info("card tokenized",
		slog.String("token", token),
		slog.String("brand", string(brand)),
		slog.String("key_id", keyID),
	)

	return storeResult(record, false), nil
}

// storeLost drops record after another writer indexed the same card first and
// returns that writer's token.
func (v *vaultUseCase) storeLost(
	ctx context.Context,
	record *vaultDomain.VaultRecord,
	now time.Time,
) (*vaultDomain.StoreResult, error) {
	if err := v.records.Delete(context.WithoutCancel(ctx), record.Token); err != nil {
		v.logger.Error("failed to drop unindexed card record",
			slog.String("token", record.Token),
			slog.Any("error", err),
		)
	}

	winner, _, err := v.activeRecordFor(ctx, record.Fingerprint, now)
	if err != nil {
		return nil, err
	}
	if winner == nil {
		return nil, fmt.Errorf("failed to store card: %w", errFingerprintTaken)
	}

	v.logger.Info("card tokenized concurrently by another writer",
		slog.String("token", winner.Token),
	)
	return storeResult(winner, true), nil
}

// RetrieveCard returns the minimized view of the card, or the full card data for a
// reveal. LastAccessedAt is written once decryption and both tamper checks passed.
// A cancellation seen before that write fails the call and leaves the record
// untouched; once the write starts it completes and the view is returned.
func (v *vaultUseCase) RetrieveCard(
	ctx context.Context,
	token string,
	opts vaultDomain.RetrieveOptions,
	ac accessDomain.Context,
) (view *vaultDomain.CardView, err error) {
	op := accessDomain.OpRetrieveCard
	if opts.Reveal {
		op = accessDomain.OpRevealCard
	}
	if err := v.authorize(ctx, op, ac, token); err != nil {
		return nil, err
	}
	defer func() {
		v.recordOutcome(ctx, op, ac, token, "", err)
	}()

	unlock := v.tokenLocks.Lock(token)
	defer unlock()

	now := v.now()
	record, err := v.loadActive(ctx, token, now)
	if err != nil {
		return nil, err
	}

	card, err := v.open(ctx, record)
	if err != nil {
		return nil, err
	}

	view = &vaultDomain.CardView{
		Token:          record.Token,
		Brand:          record.Brand,
		Last4:          record.Last4,
		ExpiryDisplay:  record.ExpiryDisplay,
		TokenExpiresAt: record.ExpiresAt,
	}
	if opts.Reveal {
		view.Revealed = true
		view.Card = card
	}

	// Past this point the access is recorded in full even if ctx is canceled.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	record.LastAccessedAt = &now
	writeCtx := context.WithoutCancel(ctx)
	err = v.txManager.WithTx(writeCtx, func(ctx context.Context) error {
		return v.records.Put(ctx, record)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record card access: %w", err)
	}

	return view, nil
}

// DeleteCard removes the record and its index entry. The PAN is decrypted once to
// recompute the fingerprint rather than trusting the stored copy.
func (v *vaultUseCase) DeleteCard(
	ctx context.Context,
	token string,
	opts vaultDomain.DeleteOptions,
	ac accessDomain.Context,
) (err error) {
	const op = accessDomain.OpDeleteCard
	if err := v.authorize(ctx, op, ac, token); err != nil {
		return err
	}
	defer func() {
		v.recordOutcome(ctx, op, ac, token, opts.Reason, err)
	}()

	if token == "" {
		return vaultDomain.ErrInvalidToken
	}

	unlock := v.tokenLocks.Lock(token)
	defer unlock()

	record, err := v.records.Get(ctx, token)
	if err != nil {
		return err
	}

	card, err := v.open(ctx, record)
	if err != nil {
		return err
	}

	fingerprint, err := v.fingerprint(ctx, card.PAN)
	if err != nil {
		return err
	}
	if record.Fingerprint != "" && record.Fingerprint != fingerprint {
		v.logger.Warn("stored fingerprint differs from recomputed fingerprint",
			slog.String("token", token),
		)
	}

	unlockFingerprint := v.fingerprintLocks.Lock(fingerprint)
	defer unlockFingerprint()

	err = v.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := v.fingerprints.Delete(ctx, fingerprint, token); err != nil {
			return err
		}
		if record.Fingerprint != "" && record.Fingerprint != fingerprint {
			if err := v.fingerprints.Delete(ctx, record.Fingerprint, token); err != nil {
				return err
			}
		}
		return v.records.Delete(ctx, token)
	})
	if err != nil {
		return fmt.Errorf("failed to delete card: %w", err)
	}

	v.logger.Info("card deleted", slog.String("token", token))
	return nil
}

// FindExistingCard looks the card up by fingerprint only.
func (v *vaultUseCase) FindExistingCard(
	ctx context.Context,
	pan string,
	ac accessDomain.Context,
) (result *vaultDomain.FindResult, err error) {
	const op = accessDomain.OpFindCard
	if err := v.authorize(ctx, op, ac, ""); err != nil {
		return nil, err
	}
	defer func() {
		token := ""
		if result != nil {
			token = result.Token
		}
		v.recordOutcome(ctx, op, ac, token, "", err)
	}()

	pan = vaultDomain.NormalizePAN(pan)
	if err := vaultDomain.ValidatePAN(pan); err != nil {
		return nil, err
	}

	fingerprint, err := v.fingerprint(ctx, pan)
	if err != nil {
		return nil, err
	}

	record, _, err := v.activeRecordFor(ctx, fingerprint, v.now())
	if err != nil {
		return nil, err
	}
	if record == nil {
		return &vaultDomain.FindResult{}, nil
	}
	return &vaultDomain.FindResult{Exists: true, Token: record.Token}, nil
}

// UpdateCardExpiry re-encrypts the card with a new expiry under the active key.
func (v *vaultUseCase) UpdateCardExpiry(
	ctx context.Context,
	token string,
	month, year int,
	ac accessDomain.Context,
) (err error) {
	const op = accessDomain.OpUpdateCardExpiry
	if err := v.authorize(ctx, op, ac, token); err != nil {
		return err
	}
	defer func() {
		v.recordOutcome(ctx, op, ac, token, "", err)
	}()

	now := v.now()
	if err := vaultDomain.ValidateExpiry(month, year, now); err != nil {
		return err
	}

	unlock := v.tokenLocks.Lock(token)
	defer unlock()

	record, err := v.loadActive(ctx, token, now)
	if err != nil {
		return err
	}

	card, err := v.open(ctx, record)
	if err != nil {
		return err
	}
	card.ExpiryMonth = month
	card.ExpiryYear = year

	keyID, err := v.keys.GetActiveKey(ctx, keysDomain.PurposePayment)
	if err != nil {
		return fmt.Errorf("failed to resolve payment key: %w", err)
	}

	sealed, err := v.seal(ctx, keyID, token, *card)
	if err != nil {
		return err
	}

	record.Payload = sealed.payload
	record.IntegrityTag = sealed.tag
	record.EncryptionKeyID = keyID
	record.ExpiryDisplay = vaultDomain.ExpiryDisplay(month, year)
	record.UpdatedAt = now

	err = v.txManager.WithTx(ctx, func(ctx context.Context) error {
		return v.records.Put(ctx, record)
	})
	if err != nil {
		return fmt.Errorf("failed to update card expiry: %w", err)
	}
	return nil
}

// ExtendTokenExpiry pushes ExpiresAt forward without touching the payload.
func (v *vaultUseCase) ExtendTokenExpiry(
	ctx context.Context,
	token string,
	extension time.Duration,
	ac accessDomain.Context,
) (expiresAt time.Time, err error) {
	const op = accessDomain.OpExtendTokenExpiry
	if err := v.authorize(ctx, op, ac, token); err != nil {
		return time.Time{}, err
	}
	defer func() {
		v.recordOutcome(ctx, op, ac, token, "", err)
	}()

	if extension <= 0 {
		return time.Time{}, vaultDomain.ErrInvalidExtension
	}

	unlock := v.tokenLocks.Lock(token)
	defer unlock()

	now := v.now()
	record, err := v.loadActive(ctx, token, now)
	if err != nil {
		return time.Time{}, err
	}

	record.ExpiresAt = record.ExpiresAt.Add(extension)
	record.UpdatedAt = now

	err = v.txManager.WithTx(ctx, func(ctx context.Context) error {
		return v.records.Put(ctx, record)
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to extend token expiry: %w", err)
	}
	return record.ExpiresAt, nil
}
