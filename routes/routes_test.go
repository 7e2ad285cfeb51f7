package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"serra-http-service/config"
	"serra-http-service/models"
	"serra-http-service/services"
	"serra-http-service/services/container"
	"serra-http-service/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testEnv 一套跑在内存路由上的完整服务端
type testEnv struct {
	Router    *gin.Engine
	Container *container.ServiceContainer
	DB        *gorm.DB
	Config    *config.Config
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := filepath.Join(t.TempDir(), "serra_e2e.sqlite") + "?_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("打开测试数据库失败: %v", err)
	}

	err = db.AutoMigrate(
		&models.Admin{},
		&models.Project{},
		&models.Device{},
		&models.HeartbeatEvent{},
		&models.Command{},
		&models.Sequence{},
	)
	if err != nil {
		t.Fatalf("迁移测试数据库失败: %v", err)
	}

	cfg := &config.Config{
		JWTSecretKey:     "e2e-test-secret",
		OfflineThreshold: 120 * time.Second,
		SweepInterval:    time.Minute,
	}

	if err := services.NewSequenceService(db).EnsureSequence(models.SequenceProjectPublicID); err != nil {
		t.Fatalf("初始化项目编号序列失败: %v", err)
	}

	hashed, err := utils.HashPassword("admin123")
	if err != nil {
		t.Fatalf("哈希管理员密码失败: %v", err)
	}
	admin := models.Admin{
		Username: "admin",
		Password: hashed,
		Email:    "admin@example.com",
	}
	if err := db.Create(&admin).Error; err != nil {
		t.Fatalf("创建管理员失败: %v", err)
	}

	r, serviceContainer := SetupRouter(db, cfg)
	return &testEnv{Router: r, Container: serviceContainer, DB: db, Config: cfg}
}

// do 发送请求并解析JSON响应
func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}, headers map[string]string) (int, map[string]interface{}) {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("序列化请求体失败: %v", err)
		}
		reqBody = bytes.NewBuffer(raw)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)

	var parsed map[string]interface{}
	if len(w.Body.Bytes()) > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &parsed); err != nil {
			// 数组响应单独处理，包一层再返回
			var arr []interface{}
			if err2 := json.Unmarshal(w.Body.Bytes(), &arr); err2 != nil {
				t.Fatalf("解析响应失败: %v, 响应体: %s", err, w.Body.String())
			}
			parsed = map[string]interface{}{"_array": arr}
		}
	}
	return w.Code, parsed
}

// login 登录并返回JWT令牌
func (e *testEnv) login(t *testing.T) string {
	t.Helper()

	status, resp := e.do(t, http.MethodPost, "/api/auth/login", "",
		map[string]string{"username": "admin", "password": "admin123"}, nil)
	if status != http.StatusOK {
		t.Fatalf("登录失败, 状态码 %d: %v", status, resp)
	}

	data, _ := resp["data"].(map[string]interface{})
	token, _ := data["token"].(string)
	if token == "" {
		t.Fatalf("登录响应缺少令牌: %v", resp)
	}
	return token
}

func TestPing(t *testing.T) {
	e := setupTestEnv(t)

	status, resp := e.do(t, http.MethodGet, "/api/ping", "", nil, nil)
	if status != http.StatusOK {
		t.Fatalf("健康检查状态码 %d", status)
	}
	if resp["message"] != "pong" {
		t.Fatalf("健康检查响应错误: %v", resp)
	}
	if resp["service"] != "serra-http-service" || resp["version"] == "" {
		t.Fatalf("健康检查缺少服务标识: %v", resp)
	}
}

func TestOperatorRoutesRequireAuth(t *testing.T) {
	e := setupTestEnv(t)

	status, _ := e.do(t, http.MethodGet, "/api/projects", "", nil, nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("无令牌访问状态码 %d, 期望 401", status)
	}

	status, _ = e.do(t, http.MethodGet, "/api/projects", "not-a-real-token", nil, nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("伪造令牌访问状态码 %d, 期望 401", status)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	e := setupTestEnv(t)

	status, _ := e.do(t, http.MethodPost, "/api/auth/login", "",
		map[string]string{"username": "admin", "password": "wrong"}, nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("错误密码登录状态码 %d, 期望 401", status)
	}

	status, _ = e.do(t, http.MethodPost, "/api/auth/login", "",
		map[string]string{"username": "nobody", "password": "admin123"}, nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("未知用户登录状态码 %d, 期望 401", status)
	}
}

// TestDeviceLifecycle 覆盖完整链路：
// 建项目 -> 注册设备 -> 心跳上线 -> 下发指令 -> 设备轮询 -> 确认 -> 离线扫描
func TestDeviceLifecycle(t *testing.T) {
	e := setupTestEnv(t)
	token := e.login(t)

	// 创建项目，分配第一个公开ID
	status, resp := e.do(t, http.MethodPost, "/api/projects", token,
		map[string]string{"name": "阳台大棚", "owner": "operator1"}, nil)
	if status != http.StatusCreated {
		t.Fatalf("创建项目状态码 %d: %v", status, resp)
	}
	projectData := resp["data"].(map[string]interface{})
	if projectData["public_id"] != "PROJ1" {
		t.Fatalf("项目公开ID为 %v, 期望 PROJ1", projectData["public_id"])
	}
	projectID := int(projectData["id"].(float64))

	// 在槽位5注册设备
	status, resp = e.do(t, http.MethodPost, fmt.Sprintf("/api/projects/%d/devices", projectID), token,
		map[string]interface{}{"slot": 5, "name": "西侧控制器"}, nil)
	if status != http.StatusCreated {
		t.Fatalf("注册设备状态码 %d: %v", status, resp)
	}
	deviceData := resp["data"].(map[string]interface{})
	compositeID, _ := deviceData["composite_id"].(string)
	secret, _ := deviceData["secret"].(string)
	if compositeID != "PROJ1-ESP5" {
		t.Fatalf("组合ID为 %q, 期望 PROJ1-ESP5", compositeID)
	}
	if secret == "" {
		t.Fatal("注册响应缺少明文密钥")
	}
	deviceID := int(deviceData["device"].(map[string]interface{})["id"].(float64))

	deviceHeaders := map[string]string{
		"x-composite-device-id": compositeID,
		"x-device-key":          secret,
	}

	// 心跳上线
	status, resp = e.do(t, http.MethodPost, "/api/device/heartbeat", "",
		map[string]interface{}{"rssi": -61, "firmware_version": "v3.2.0"}, deviceHeaders)
	if status != http.StatusOK {
		t.Fatalf("心跳状态码 %d: %v", status, resp)
	}
	if resp["status"] != string(models.DeviceStatusOnline) {
		t.Fatalf("心跳后状态为 %v, 期望 online", resp["status"])
	}

	// 错误密钥被拒绝
	status, _ = e.do(t, http.MethodPost, "/api/device/heartbeat", "", nil, map[string]string{
		"x-composite-device-id": compositeID,
		"x-device-key":          "wrong",
	})
	if status != http.StatusUnauthorized {
		t.Fatalf("错误密钥心跳状态码 %d, 期望 401", status)
	}

	// 下发指令
	status, resp = e.do(t, http.MethodPost, fmt.Sprintf("/api/devices/%d/commands", deviceID), token,
		map[string]interface{}{"actuator_id": "pump_1", "command_type": "turn_on"}, nil)
	if status != http.StatusCreated {
		t.Fatalf("下发指令状态码 %d: %v", status, resp)
	}
	commandID := int(resp["data"].(map[string]interface{})["id"].(float64))

	// 设备轮询：拿到待执行指令
	status, resp = e.do(t, http.MethodPost, "/api/device/commands/pending", "", nil, deviceHeaders)
	if status != http.StatusOK {
		t.Fatalf("轮询状态码 %d: %v", status, resp)
	}
	pending := resp["_array"]
	cmds, _ := pending.([]interface{})
	if len(cmds) != 1 {
		t.Fatalf("待执行指令数 %d, 期望 1: %v", len(cmds), resp)
	}
	first := cmds[0].(map[string]interface{})
	if first["actuator_id"] != "pump_1" || first["command_type"] != "turn_on" {
		t.Fatalf("指令内容错误: %v", first)
	}

	// 确认执行
	status, resp = e.do(t, http.MethodPost, "/api/device/commands/confirm", "",
		map[string]interface{}{"command_id": commandID}, deviceHeaders)
	if status != http.StatusOK {
		t.Fatalf("确认状态码 %d: %v", status, resp)
	}

	// 确认后队列为空
	status, resp = e.do(t, http.MethodPost, "/api/device/commands/pending", "", nil, deviceHeaders)
	if status != http.StatusOK {
		t.Fatalf("二次轮询状态码 %d", status)
	}
	if cmds, _ := resp["_array"].([]interface{}); len(cmds) != 0 {
		t.Fatalf("确认后仍有 %d 条待执行指令", len(cmds))
	}

	// 重复确认无害
	status, _ = e.do(t, http.MethodPost, "/api/device/commands/confirm", "",
		map[string]interface{}{"command_id": commandID}, deviceHeaders)
	if status != http.StatusOK {
		t.Fatalf("重复确认状态码 %d, 期望 200", status)
	}

	// 心跳停止后由离线扫描置为离线
	staleAt := time.Now().Add(-e.Config.OfflineThreshold - time.Minute)
	if err := e.DB.Model(&models.Device{}).
		Where("id = ?", deviceID).
		Update("last_seen_at", staleAt).Error; err != nil {
		t.Fatalf("回拨心跳时间失败: %v", err)
	}
	heartbeatService := e.Container.GetService("heartbeat").(services.InterfaceHeartbeatService)
	if _, err := heartbeatService.Sweep(); err != nil {
		t.Fatalf("离线扫描失败: %v", err)
	}

	status, resp = e.do(t, http.MethodGet, fmt.Sprintf("/api/devices/%d/status", deviceID), token, nil, nil)
	if status != http.StatusOK {
		t.Fatalf("查询状态状态码 %d: %v", status, resp)
	}
	statusData := resp["data"].(map[string]interface{})
	if statusData["status"] != string(models.DeviceStatusOffline) {
		t.Fatalf("扫描后状态为 %v, 期望 offline", statusData["status"])
	}
}

func TestSlotConflictOverHTTP(t *testing.T) {
	e := setupTestEnv(t)
	token := e.login(t)

	_, resp := e.do(t, http.MethodPost, "/api/projects", token,
		map[string]string{"name": "冲突测试项目"}, nil)
	projectID := int(resp["data"].(map[string]interface{})["id"].(float64))

	register := func() (int, map[string]interface{}) {
		return e.do(t, http.MethodPost, fmt.Sprintf("/api/projects/%d/devices", projectID), token,
			map[string]interface{}{"slot": 3, "name": "设备"}, nil)
	}

	if status, r := register(); status != http.StatusCreated {
		t.Fatalf("首次注册状态码 %d: %v", status, r)
	}
	if status, r := register(); status != http.StatusConflict {
		t.Fatalf("重复槽位注册状态码 %d, 期望 409: %v", status, r)
	}

	// 槽位越界
	status, _ := e.do(t, http.MethodPost, fmt.Sprintf("/api/projects/%d/devices", projectID), token,
		map[string]interface{}{"slot": 21, "name": "越界设备"}, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("越界槽位注册状态码 %d, 期望 400", status)
	}
}

func TestRotateCredentialOverHTTP(t *testing.T) {
	e := setupTestEnv(t)
	token := e.login(t)

	_, resp := e.do(t, http.MethodPost, "/api/projects", token,
		map[string]string{"name": "轮换测试项目"}, nil)
	projectID := int(resp["data"].(map[string]interface{})["id"].(float64))

	_, resp = e.do(t, http.MethodPost, fmt.Sprintf("/api/projects/%d/devices", projectID), token,
		map[string]interface{}{"slot": 1, "name": "设备"}, nil)
	deviceData := resp["data"].(map[string]interface{})
	compositeID := deviceData["composite_id"].(string)
	oldSecret := deviceData["secret"].(string)
	deviceID := int(deviceData["device"].(map[string]interface{})["id"].(float64))

	status, resp := e.do(t, http.MethodPost, fmt.Sprintf("/api/devices/%d/credential", deviceID), token, nil, nil)
	if status != http.StatusOK {
		t.Fatalf("轮换密钥状态码 %d: %v", status, resp)
	}
	newSecret := resp["data"].(map[string]interface{})["secret"].(string)
	if newSecret == "" || newSecret == oldSecret {
		t.Fatalf("轮换后密钥无效: %q", newSecret)
	}

	// 旧密钥立即失效，新密钥可用
	status, _ = e.do(t, http.MethodPost, "/api/device/heartbeat", "", nil, map[string]string{
		"x-composite-device-id": compositeID,
		"x-device-key":          oldSecret,
	})
	if status != http.StatusUnauthorized {
		t.Fatalf("旧密钥心跳状态码 %d, 期望 401", status)
	}

	status, _ = e.do(t, http.MethodPost, "/api/device/heartbeat", "", nil, map[string]string{
		"x-composite-device-id": compositeID,
		"x-device-key":          newSecret,
	})
	if status != http.StatusOK {
		t.Fatalf("新密钥心跳状态码 %d, 期望 200", status)
	}
}

func TestDeviceProtocolErrorMapping(t *testing.T) {
	e := setupTestEnv(t)

	// 标识格式非法 -> 400
	status, _ := e.do(t, http.MethodPost, "/api/device/heartbeat", "", nil, map[string]string{
		"x-composite-device-id": "not-a-valid-id",
		"x-device-key":          "whatever",
	})
	if status != http.StatusBadRequest {
		t.Fatalf("非法标识状态码 %d, 期望 400", status)
	}

	// 格式合法但设备不存在 -> 404
	status, _ = e.do(t, http.MethodPost, "/api/device/heartbeat", "", nil, map[string]string{
		"x-composite-device-id": "PROJ1-ESP5",
		"x-device-key":          "whatever",
	})
	if status != http.StatusNotFound {
		t.Fatalf("未注册设备状态码 %d, 期望 404", status)
	}

	// 未提供任何标识 -> 400
	status, _ = e.do(t, http.MethodPost, "/api/device/heartbeat", "", nil, map[string]string{
		"x-device-key": "whatever",
	})
	if status != http.StatusBadRequest {
		t.Fatalf("空标识状态码 %d, 期望 400", status)
	}
}

func TestListResponsePagination(t *testing.T) {
	e := setupTestEnv(t)
	token := e.login(t)

	for _, name := range []string{"東区大棚", "西区大棚"} {
		status, resp := e.do(t, http.MethodPost, "/api/projects", token,
			map[string]string{"name": name, "owner": "operator1"}, nil)
		if status != http.StatusCreated {
			t.Fatalf("创建项目状态码 %d: %v", status, resp)
		}
	}

	status, resp := e.do(t, http.MethodGet, "/api/projects?pageNum=1&pageSize=10", token, nil, nil)
	if status != http.StatusOK {
		t.Fatalf("项目列表状态码 %d: %v", status, resp)
	}
	data, _ := resp["data"].(map[string]interface{})
	pagination, _ := data["pagination"].(map[string]interface{})
	if pagination == nil {
		t.Fatalf("项目列表缺少分页信息: %v", resp)
	}
	if pagination["total"] != float64(2) || pagination["pageNum"] != float64(1) || pagination["pageSize"] != float64(10) {
		t.Fatalf("项目分页信息错误: %v", pagination)
	}

	status, resp = e.do(t, http.MethodGet, "/api/admin", token, nil, nil)
	if status != http.StatusOK {
		t.Fatalf("管理员列表状态码 %d: %v", status, resp)
	}
	data, _ = resp["data"].(map[string]interface{})
	pagination, _ = data["pagination"].(map[string]interface{})
	if pagination == nil {
		t.Fatalf("管理员列表缺少分页信息: %v", resp)
	}
	if total, _ := pagination["total"].(float64); total < 1 {
		t.Fatalf("管理员分页总数 %v, 期望至少1", pagination["total"])
	}
}

func TestHeartbeatRateLimited(t *testing.T) {
	e := setupTestEnv(t)
	token := e.login(t)

	status, resp := e.do(t, http.MethodPost, "/api/projects", token,
		map[string]string{"name": "限流测试大棚", "owner": "operator1"}, nil)
	if status != http.StatusCreated {
		t.Fatalf("创建项目状态码 %d: %v", status, resp)
	}
	projectID := int(resp["data"].(map[string]interface{})["id"].(float64))

	status, resp = e.do(t, http.MethodPost, fmt.Sprintf("/api/projects/%d/devices", projectID), token,
		map[string]interface{}{"slot": 1, "name": "限流测试控制器"}, nil)
	if status != http.StatusCreated {
		t.Fatalf("注册设备状态码 %d: %v", status, resp)
	}
	deviceData := resp["data"].(map[string]interface{})
	headers := map[string]string{
		"x-composite-device-id": deviceData["composite_id"].(string),
		"x-device-key":          deviceData["secret"].(string),
	}

	ok, limited := 0, 0
	for i := 0; i < 40; i++ {
		status, _ = e.do(t, http.MethodPost, "/api/device/heartbeat", "", nil, headers)
		switch status {
		case http.StatusOK:
			ok++
		case http.StatusTooManyRequests:
			limited++
		default:
			t.Fatalf("心跳状态码 %d", status)
		}
	}
	if ok == 0 {
		t.Fatal("所有心跳均被限流")
	}
	if limited == 0 {
		t.Fatal("连续40次心跳未触发限流")
	}

	// 心跳限流不影响登录接口的令牌桶
	e.login(t)
}
