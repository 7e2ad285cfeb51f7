package code

// HTTP状态码.
const (
	// StatusOK - 200: 成功.
	StatusOK = 200
	// StatusBadRequest - 400: 请求参数错误.
	StatusBadRequest = 400
	// StatusUnauthorized - 401: 未授权.
	StatusUnauthorized = 401
	// StatusForbidden - 403: 禁止访问.
	StatusForbidden = 403
	// StatusNotFound - 404: 资源不存在.
	StatusNotFound = 404
	// StatusConflict - 409: 资源冲突.
	StatusConflict = 409
	// StatusInternalServerError - 500: 服务器内部错误.
	StatusInternalServerError = 500
	// StatusTooManyRequests - 429: 请求过多.
	StatusTooManyRequests = 429
)

// 通用错误码 (100xxx).
const (
	// ErrSuccess - 200: 成功.
	ErrSuccess int = iota + 100000
	// ErrUnknown - 500: 未知错误.
	ErrUnknown
	// ErrBind - 400: 请求参数绑定错误.
	ErrBind
	// ErrValidation - 400: 请求参数验证错误.
	ErrValidation
	// ErrTokenInvalid - 401: 令牌无效.
	ErrTokenInvalid
	// ErrTooManyRequests - 429: 请求频率过高.
	ErrTooManyRequests
)

// 用户相关错误码 (101xxx).
const (
	// ErrUserNotFound - 404: 用户不存在.
	ErrUserNotFound int = iota + 101000
	// ErrUserAlreadyExist - 400: 用户已存在.
	ErrUserAlreadyExist
	// ErrUserPasswordIncorrect - 401: 用户密码错误.
	ErrUserPasswordIncorrect
)

// 项目相关错误码 (103xxx).
const (
	// ErrProjectNotFound - 404: 项目不存在.
	ErrProjectNotFound int = iota + 103000
	// ErrProjectNameExists - 409: 项目名称已存在.
	ErrProjectNameExists
	// ErrProjectCapacityExhausted - 500: 项目公开ID已达上限.
	ErrProjectCapacityExhausted
	// ErrProjectArchived - 400: 项目已归档.
	ErrProjectArchived
)

// 设备相关错误码 (102xxx).
const (
	// ErrDeviceNotFound - 404: 设备不存在.
	ErrDeviceNotFound int = iota + 102000
	// ErrSlotTaken - 409: 槽位已被占用.
	ErrSlotTaken
	// ErrSlotOutOfRange - 400: 槽位超出范围.
	ErrSlotOutOfRange
	// ErrMalformedDeviceID - 400: 设备标识格式无效.
	ErrMalformedDeviceID
	// ErrCredentialMismatch - 401: 设备密钥校验失败.
	ErrCredentialMismatch
)

// 指令相关错误码 (104xxx).
const (
	// ErrCommandNotFound - 404: 指令不存在.
	ErrCommandNotFound int = iota + 104000
	// ErrCommandInvalid - 400: 指令参数无效.
	ErrCommandInvalid
)

// 数据库相关错误码 (105xxx).
const (
	// ErrDatabase - 500: 数据库错误.
	ErrDatabase int = iota + 105000
	// ErrRecordNotFound - 404: 记录不存在.
	ErrRecordNotFound
)
