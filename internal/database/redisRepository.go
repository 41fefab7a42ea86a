package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ds124wfegd/alarmbridge/internal/entity"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

const (
	alarmKeyPrefix = "alarm:"
	dueKey         = "alarms:due"
)

// Both scripts remove the zset member and the record together so a single
// alarm is never handed out twice.
var claimDueScript = redis.NewScript(`
local members = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', '0', ARGV[2])
local out = {}
for _, member in ipairs(members) do
	redis.call('ZREM', KEYS[1], member)
	local key = ARGV[3] .. member
	local record = redis.call('HGET', key, 'record')
	redis.call('DEL', key)
	if record then
		table.insert(out, record)
	end
end
return out
`)

var claimScript = redis.NewScript(`
local generation = redis.call('HGET', KEYS[2], 'generation')
if generation ~= ARGV[2] then
	return false
end
local record = redis.call('HGET', KEYS[2], 'record')
redis.call('ZREM', KEYS[1], ARGV[1])
redis.call('DEL', KEYS[2])
return record
`)

type redisRepository struct {
	client *redis.Client
}

func NewRedisRepository(client *redis.Client) AlarmRepository {
	return &redisRepository{client: client}
}

func alarmKey(key int32) string {
	return alarmKeyPrefix + strconv.FormatInt(int64(key), 10)
}

func (r *redisRepository) Put(ctx context.Context, alarm *entity.PendingAlarm) error {
	data, err := json.Marshal(alarm)
	if err != nil {
		return err
	}

	member := strconv.FormatInt(int64(alarm.Key), 10)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, alarmKey(alarm.Key), "record", data, "generation", alarm.Generation)
		pipe.ZAdd(ctx, dueKey, &redis.Z{
			Score:  float64(alarm.TriggerAt.UnixMilli()),
			Member: member,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store alarm %d: %w", alarm.Key, err)
	}
	return nil
}

func (r *redisRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*entity.PendingAlarm, error) {
	records, err := claimDueScript.Run(ctx, r.client,
		[]string{dueKey},
		strconv.FormatInt(now.UnixMilli(), 10), limit, alarmKeyPrefix,
	).StringSlice()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim due alarms: %w", err)
	}

	alarms := make([]*entity.PendingAlarm, 0, len(records))
	for _, record := range records {
		var alarm entity.PendingAlarm
		if err := json.Unmarshal([]byte(record), &alarm); err != nil {
			// the record is gone already; a corrupt one cannot be delivered anyway
			logrus.WithError(err).Warn("dropping undecodable alarm record")
			continue
		}
		alarms = append(alarms, &alarm)
	}

	return alarms, nil
}

func (r *redisRepository) Claim(ctx context.Context, key int32, generation string) (*entity.PendingAlarm, error) {
	member := strconv.FormatInt(int64(key), 10)
	record, err := claimScript.Run(ctx, r.client,
		[]string{dueKey, alarmKey(key)},
		member, generation,
	).Text()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to claim alarm %d: %w", key, err)
	}

	var alarm entity.PendingAlarm
	if err := json.Unmarshal([]byte(record), &alarm); err != nil {
		return nil, fmt.Errorf("failed to decode alarm %d: %w", key, err)
	}
	return &alarm, nil
}
