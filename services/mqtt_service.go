package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"serra-http-service/config"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// 主题常量
const (
	// 设备状态变更主题（看板实时视图订阅）
	TopicDeviceStatus = "serra/device/status"

	// 系统消息主题
	TopicSystemMessage = "serra/system"
)

// DeviceStatusMessage 设备状态变更消息
type DeviceStatusMessage struct {
	CompositeID string                 `json:"composite_id"`
	Timestamp   int64                  `json:"timestamp"`
	Payload     map[string]interface{} `json:"payload"`
}

// SystemMessage 系统消息
type SystemMessage struct {
	Type      string                 `json:"type"`
	Message   map[string]interface{} `json:"message"`
	Timestamp int64                  `json:"timestamp"`
}

// InterfaceMQTTService 定义MQTT消息服务接口
type InterfaceMQTTService interface {
	Connect() error
	Disconnect()
	PublishDeviceStatus(compositeID string, payload map[string]interface{}) error
	PublishSystemMessage(messageType string, message map[string]interface{}) error
}

// MQTTService 向MQTT broker发布设备状态变更和系统消息。
// broker未配置或未连接时发布退化为空操作，不影响主流程。
type MQTTService struct {
	Config         *config.Config
	Client         mqtt.Client
	IsConnected    bool
	connectedMutex sync.RWMutex
	PublishMutex   sync.Mutex
}

// NewMQTTService 创建一个新的MQTT服务
func NewMQTTService(cfg *config.Config) InterfaceMQTTService {
	service := &MQTTService{
		Config:      cfg,
		IsConnected: false,
	}

	if cfg.MQTTBroker != "" {
		service.setupMQTTClient()
	}

	return service
}

// setupMQTTClient 设置MQTT客户端
func (s *MQTTService) setupMQTTClient() {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(s.Config.MQTTBroker)
	// 使用唯一的客户端ID，避免同一服务多实例冲突
	opts.SetClientID(fmt.Sprintf("%s-%s-%d", s.Config.MQTTClientID, uuid.New().String()[:8], time.Now().UnixNano()))
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(time.Second * 30)
	opts.SetKeepAlive(time.Second * 60)
	opts.SetPingTimeout(time.Second * 10)
	opts.SetCleanSession(true)

	// 设置连接丢失回调
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Printf("[MQTT] 连接丢失: %v", err)
		s.connectedMutex.Lock()
		s.IsConnected = false
		s.connectedMutex.Unlock()
	})

	// 设置连接建立回调
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Println("[MQTT] 成功连接到", s.Config.MQTTBroker)
		s.connectedMutex.Lock()
		s.IsConnected = true
		s.connectedMutex.Unlock()
	})

	// 设置重连回调
	opts.SetReconnectingHandler(func(client mqtt.Client, opts *mqtt.ClientOptions) {
		log.Println("[MQTT] 正在尝试重连...")
	})

	s.Client = mqtt.NewClient(opts)
}

// Connect 连接MQTT broker。broker未配置时跳过
func (s *MQTTService) Connect() error {
	if s.Client == nil {
		log.Println("[MQTT] 未配置broker，MQTT消息发布已禁用")
		return nil
	}

	token := s.Client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return errors.New("MQTT连接超时")
	}
	return token.Error()
}

// Disconnect 断开MQTT连接
func (s *MQTTService) Disconnect() {
	if s.Client != nil && s.Client.IsConnected() {
		s.Client.Disconnect(250)
	}
}

// connected 读取连接状态
func (s *MQTTService) connected() bool {
	s.connectedMutex.RLock()
	defer s.connectedMutex.RUnlock()
	return s.Client != nil && s.IsConnected
}

// publish 序列化并发布消息，QoS 1
func (s *MQTTService) publish(topic string, message interface{}) error {
	if !s.connected() {
		return nil
	}

	payload, err := json.Marshal(message)
	if err != nil {
		return err
	}

	s.PublishMutex.Lock()
	defer s.PublishMutex.Unlock()

	token := s.Client.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return errors.New("MQTT消息发布超时")
	}
	return token.Error()
}

// PublishDeviceStatus 发布设备状态变更消息
func (s *MQTTService) PublishDeviceStatus(compositeID string, payload map[string]interface{}) error {
	return s.publish(TopicDeviceStatus, DeviceStatusMessage{
		CompositeID: compositeID,
		Timestamp:   time.Now().UnixMilli(),
		Payload:     payload,
	})
}

// PublishSystemMessage 发布系统消息
func (s *MQTTService) PublishSystemMessage(messageType string, message map[string]interface{}) error {
	return s.publish(TopicSystemMessage, SystemMessage{
		Type:      messageType,
		Message:   message,
		Timestamp: time.Now().UnixMilli(),
	})
}
