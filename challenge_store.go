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

const challengeRecordVersion1 = 1

var errChallengeNotFound = errors.New("challenge record not found")

type challengeRecord struct {
	UserID         string
	ChallengeToken string
	CreatedAt      int64
}

// challengeStore keeps pending login challenges under two keys: a forward
// key per user (so a new login replaces any outstanding challenge) and a
// reverse key per token (so verification is a single lookup). Both are
// written and cleared together.
type challengeStore struct {
	redis  redis.UniversalClient
	prefix string
}

func newChallengeStore(redisClient redis.UniversalClient, prefix string) *challengeStore {
	if prefix == "" {
		prefix = "ac"
	}
	return &challengeStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *challengeStore) userKey(userID string) string {
	return s.prefix + ":tfc:user:" + userID
}

func (s *challengeStore) tokenKey(token string) string {
	return s.prefix + ":tfc:tok:" + token
}

func (s *challengeStore) Save(ctx context.Context, record *challengeRecord, ttl time.Duration) error {
	encoded, err := encodeChallengeRecord(record)
	if err != nil {
		return err
	}

	// Drop the previous challenge's reverse key before writing the new
	// pair, otherwise a superseded token would stay valid until its TTL.
	prior, err := s.redis.Get(ctx, s.userKey(record.UserID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if prior != "" {
			pipe.Del(ctx, s.tokenKey(prior))
		}
		pipe.Set(ctx, s.userKey(record.UserID), record.ChallengeToken, ttl)
		pipe.Set(ctx, s.tokenKey(record.ChallengeToken), encoded, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *challengeStore) GetByToken(ctx context.Context, token string) (*challengeRecord, error) {
	data, err := s.redis.Get(ctx, s.tokenKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errChallengeNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return decodeChallengeRecord(data)
}

func (s *challengeStore) Delete(ctx context.Context, record *challengeRecord) error {
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.userKey(record.UserID))
		pipe.Del(ctx, s.tokenKey(record.ChallengeToken))
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func encodeChallengeRecord(record *challengeRecord) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(challengeRecordVersion1)

	if err := binary.Write(&buf, binary.BigEndian, record.CreatedAt); err != nil {
		return nil, err
	}
	if len(record.UserID) > 65535 || len(record.ChallengeToken) > 65535 {
		return nil, errors.New("challenge record field length exceeded")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.UserID))); err != nil {
		return nil, err
	}
	buf.WriteString(record.UserID)
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.ChallengeToken))); err != nil {
		return nil, err
	}
	buf.WriteString(record.ChallengeToken)

	return buf.Bytes(), nil
}

func decodeChallengeRecord(data []byte) (*challengeRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != challengeRecordVersion1 {
		return nil, errors.New("invalid challenge record version")
	}

	record := &challengeRecord{}
	if err := binary.Read(reader, binary.BigEndian, &record.CreatedAt); err != nil {
		return nil, err
	}

	var userLen uint16
	if err := binary.Read(reader, binary.BigEndian, &userLen); err != nil {
		return nil, err
	}
	userID := make([]byte, userLen)
	if _, err := io.ReadFull(reader, userID); err != nil {
		return nil, err
	}
	record.UserID = string(userID)

	var tokenLen uint16
	if err := binary.Read(reader, binary.BigEndian, &tokenLen); err != nil {
		return nil, err
	}
	token := make([]byte, tokenLen)
	if _, err := io.ReadFull(reader, token); err != nil {
		return nil, err
	}
	record.ChallengeToken = string(token)

	return record, nil
}
