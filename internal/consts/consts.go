package consts

const (
	// RequestId 请求id名称
	RequestId = "request_id"

	// SimulationTimeHeader 模拟时钟透传的当前时间（ISO-8601 UTC）
	SimulationTimeHeader = "X-Simulation-Time"

	DateLayout   = "2006-01-02"
	TimeLayout   = "2006-01-02 15:04:05"
	TimeLayoutMs = "2006-01-02 15:04:05.000"
	// ISOLayout 对外接口统一使用的UTC时间格式
	ISOLayout = "2006-01-02T15:04:05Z"

	// HHMMLayout 市场开收盘时刻，如 "09:30"
	HHMMLayout = "15:04"
)
