package authcore

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const setupRecordVersion1 = 1

var errSetupNotFound = errors.New("setup record not found")

// setupRecord is the ephemeral state between Setup and VerifySetup. The
// plaintext shared secret lives only here, only for the setup TTL.
type setupRecord struct {
	Secret     string
	SetupToken string
	CreatedAt  int64
}

// setupStore keeps pending enrollments in Redis, keyed by user id, expiring
// via TTL with no background sweep.
type setupStore struct {
	redis  redis.UniversalClient
	prefix string
}

func newSetupStore(redisClient redis.UniversalClient, prefix string) *setupStore {
	if prefix == "" {
		prefix = "ac"
	}
	return &setupStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *setupStore) key(userID string) string {
	return s.prefix + ":tfs:" + userID
}

func (s *setupStore) Save(ctx context.Context, userID string, record *setupRecord, ttl time.Duration) error {
	encoded, err := encodeSetupRecord(record)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(userID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *setupStore) Get(ctx context.Context, userID string) (*setupRecord, error) {
	data, err := s.redis.Get(ctx, s.key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errSetupNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return decodeSetupRecord(data)
}

func (s *setupStore) Delete(ctx context.Context, userID string) error {
	if err := s.redis.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func encodeSetupRecord(record *setupRecord) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(setupRecordVersion1)

	if err := binary.Write(&buf, binary.BigEndian, record.CreatedAt); err != nil {
		return nil, err
	}
	if len(record.Secret) > 65535 || len(record.SetupToken) > 65535 {
		return nil, errors.New("setup record field length exceeded")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.Secret))); err != nil {
		return nil, err
	}
	buf.WriteString(record.Secret)
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.SetupToken))); err != nil {
		return nil, err
	}
	buf.WriteString(record.SetupToken)

	return buf.Bytes(), nil
}

func decodeSetupRecord(data []byte) (*setupRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != setupRecordVersion1 {
		return nil, errors.New("invalid setup record version")
	}

	record := &setupRecord{}
	if err := binary.Read(reader, binary.BigEndian, &record.CreatedAt); err != nil {
		return nil, err
	}

	var secretLen uint16
	if err := binary.Read(reader, binary.BigEndian, &secretLen); err != nil {
		return nil, err
	}
	secret := make([]byte, secretLen)
	if _, err := io.ReadFull(reader, secret); err != nil {
		return nil, err
	}
	record.Secret = string(secret)

	var tokenLen uint16
	if err := binary.Read(reader, binary.BigEndian, &tokenLen); err != nil {
		return nil, err
	}
	token := make([]byte, tokenLen)
	if _, err := io.ReadFull(reader, token); err != nil {
		return nil, err
	}
	record.SetupToken = string(token)

	return record, nil
}
