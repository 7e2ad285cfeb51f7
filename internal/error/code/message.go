package code

// 错误码消息映射
var codeMessageMap = map[int]string{
	// 通用错误码
	ErrSuccess:         "成功",
	ErrUnknown:         "未知错误",
	ErrBind:            "请求参数绑定错误",
	ErrValidation:      "请求参数验证错误",
	ErrTokenInvalid:    "无效的认证令牌",
	ErrTooManyRequests: "请求频率过高",

	// 用户相关错误码
	ErrUserNotFound:          "用户不存在",
	ErrUserAlreadyExist:      "用户已存在",
	ErrUserPasswordIncorrect: "用户密码错误",

	// 项目相关错误码
	ErrProjectNotFound:          "项目不存在",
	ErrProjectNameExists:        "项目名称已存在，请更换名称",
	ErrProjectCapacityExhausted: "项目公开ID容量已耗尽，请联系运维",
	ErrProjectArchived:          "项目已归档",

	// 设备相关错误码
	ErrDeviceNotFound:     "设备不存在",
	ErrSlotTaken:          "槽位已被占用，请选择其他槽位",
	ErrSlotOutOfRange:     "槽位编号必须在1到20之间",
	ErrMalformedDeviceID:  "设备标识格式无效",
	ErrCredentialMismatch: "设备密钥校验失败",

	// 指令相关错误码
	ErrCommandNotFound: "指令不存在",
	ErrCommandInvalid:  "指令参数无效",

	// 数据库相关错误码
	ErrDatabase:       "数据库错误",
	ErrRecordNotFound: "记录不存在",
}

// 错误码HTTP状态码映射
var codeStatusMap = map[int]int{
	// 通用错误码
	ErrSuccess:         StatusOK,
	ErrUnknown:         StatusInternalServerError,
	ErrBind:            StatusBadRequest,
	ErrValidation:      StatusBadRequest,
	ErrTokenInvalid:    StatusUnauthorized,
	ErrTooManyRequests: StatusTooManyRequests,

	// 用户相关错误码
	ErrUserNotFound:          StatusNotFound,
	ErrUserAlreadyExist:      StatusBadRequest,
	ErrUserPasswordIncorrect: StatusUnauthorized,

	// 项目相关错误码
	ErrProjectNotFound:          StatusNotFound,
	ErrProjectNameExists:        StatusConflict,
	ErrProjectCapacityExhausted: StatusInternalServerError,
	ErrProjectArchived:          StatusBadRequest,

	// 设备相关错误码
	ErrDeviceNotFound:     StatusNotFound,
	ErrSlotTaken:          StatusConflict,
	ErrSlotOutOfRange:     StatusBadRequest,
	ErrMalformedDeviceID:  StatusBadRequest,
	ErrCredentialMismatch: StatusUnauthorized,

	// 指令相关错误码
	ErrCommandNotFound: StatusNotFound,
	ErrCommandInvalid:  StatusBadRequest,

	// 数据库相关错误码
	ErrDatabase:       StatusInternalServerError,
	ErrRecordNotFound: StatusNotFound,
}

// GetMessage 获取错误码对应的消息
func GetMessage(code int) string {
	if msg, ok := codeMessageMap[code]; ok {
		return msg
	}
	return "未知错误"
}

// GetStatus 获取错误码对应的HTTP状态码
func GetStatus(code int) int {
	if status, ok := codeStatusMap[code]; ok {
		return status
	}
	return StatusInternalServerError
}
