package services

import (
	"context"
	"encoding/json"
	"serra-http-service/config"
	"time"

	"github.com/go-redis/redis/v8"
)

// InterfaceRedisService 定义Redis缓存服务接口
type InterfaceRedisService interface {
	Set(key string, value interface{}, expiration time.Duration) error
	Get(key string, dest interface{}) error
	Delete(key string) error
	CacheDeviceTelemetry(deviceUUID string, telemetry interface{}, expiration time.Duration) error
	GetDeviceTelemetry(deviceUUID string, dest interface{}) error
	DeleteDeviceTelemetry(deviceUUID string) error
}

// RedisService handles Redis operations
type RedisService struct {
	Client *redis.Client
	Ctx    context.Context
}

// NewRedisService creates a new Redis service
func NewRedisService(cfg *config.Config) InterfaceRedisService {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.GetRedisAddr(),
		Password: "", // No password set
		DB:       cfg.RedisDB,
	})

	ctx := context.Background()

	return &RedisService{
		Client: client,
		Ctx:    ctx,
	}
}

// Set sets a key-value pair in Redis with expiration
func (s *RedisService) Set(key string, value interface{}, expiration time.Duration) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return s.Client.Set(s.Ctx, key, jsonValue, expiration).Err()
}

// Get gets a value from Redis by key
func (s *RedisService) Get(key string, dest interface{}) error {
	val, err := s.Client.Get(s.Ctx, key).Result()
	if err != nil {
		return err
	}

	return json.Unmarshal([]byte(val), dest)
}

// Delete deletes a key from Redis
func (s *RedisService) Delete(key string) error {
	return s.Client.Del(s.Ctx, key).Err()
}

// CacheDeviceTelemetry 缓存设备最新遥测快照，供看板状态接口读取
func (s *RedisService) CacheDeviceTelemetry(deviceUUID string, telemetry interface{}, expiration time.Duration) error {
	return s.Set("telemetry:"+deviceUUID, telemetry, expiration)
}

// GetDeviceTelemetry 读取设备最新遥测快照；缓存未命中返回 redis.Nil
func (s *RedisService) GetDeviceTelemetry(deviceUUID string, dest interface{}) error {
	return s.Get("telemetry:"+deviceUUID, dest)
}

// DeleteDeviceTelemetry 删除设备遥测缓存（设备删除时调用）
func (s *RedisService) DeleteDeviceTelemetry(deviceUUID string) error {
	return s.Delete("telemetry:" + deviceUUID)
}
