package store

import (
	"fmt"
	"strconv"

	"github.com/fako1024/progressor/pkg/scale"
	"github.com/go-redis/redis"
)

const (
	defaultRedisKey = "progressor:calibration"

	fieldFactor = "factor"
	fieldOffset = "offset"
	fieldTare   = "tare"
)

// RedisStore keeps the calibration in a Redis hash
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore instantiates a new Redis based store. An empty key selects the default
func NewRedisStore(addr, key string) *RedisStore {
	if key == "" {
		key = defaultRedisKey
	}

	return &RedisStore{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		key:    key,
	}
}

// Ping checks the connection to the server
func (r *RedisStore) Ping() error {
	return r.client.Ping().Err()
}

// Load reads the calibration hash
func (r *RedisStore) Load() (scale.Calibration, error) {
	fields, err := r.client.HGetAll(r.key).Result()
	if err != nil {
		if err == redis.Nil {
			return scale.Calibration{}, ErrNotFound
		}
		return scale.Calibration{}, err
	}

	return decodeFields(fields)
}

// Save writes the calibration hash
func (r *RedisStore) Save(c scale.Calibration) error {
	return r.client.HMSet(r.key, encodeFields(c)).Err()
}

// Close terminates the connection to the server
func (r *RedisStore) Close() error {
	return r.client.Close()
}

////////////////////////////////////////////////////////////////////////////////

func encodeFields(c scale.Calibration) map[string]interface{} {
	return map[string]interface{}{
		fieldFactor: strconv.FormatFloat(float64(c.Factor), 'g', -1, 32),
		fieldOffset: strconv.FormatFloat(float64(c.Offset), 'g', -1, 32),
		fieldTare:   strconv.FormatInt(int64(c.Tare), 10),
	}
}

func decodeFields(fields map[string]string) (scale.Calibration, error) {
	if len(fields) == 0 {
		return scale.Calibration{}, ErrNotFound
	}

	var c scale.Calibration
	for name, dst := range map[string]*float32{fieldFactor: &c.Factor, fieldOffset: &c.Offset} {
		raw, ok := fields[name]
		if !ok {
			return scale.Calibration{}, fmt.Errorf("stored calibration lacks field `%s`", name)
		}
		v, err := strconv.ParseFloat(raw, 32)
		if err != nil {
			return scale.Calibration{}, fmt.Errorf("invalid calibration field `%s`: %w", name, err)
		}
		*dst = float32(v)
	}

	if raw, ok := fields[fieldTare]; ok {
		v, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return scale.Calibration{}, fmt.Errorf("invalid calibration field `%s`: %w", fieldTare, err)
		}
		c.Tare = int32(v)
	}

	return c, nil
}
