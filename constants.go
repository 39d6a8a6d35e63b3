package driver

import "github.com/jetperch/joulescope-driver-sub001/internal/constants"

// Re-exported for callers building their own Options.Scanner or tuning
// timeouts without reaching into internal/constants themselves.
const (
	VendorID       = constants.VendorID
	ProductIDJS110 = constants.ProductIDJS110
	ProductIDJS220 = constants.ProductIDJS220

	ModelJS110 = constants.ModelJS110
	ModelJS220 = constants.ModelJS220

	DeviceScanInterval      = constants.DeviceScanInterval
	DefaultMemoryWindowSize = constants.DefaultMemoryWindowSize

	DefaultControlTimeout   = constants.DefaultControlTimeout
	DeviceOpenRetryInterval = constants.DeviceOpenRetryInterval
	DeviceOpenMaxRetries    = constants.DeviceOpenMaxRetries

	TopicMaxComponentLen = constants.TopicMaxComponentLen
	TopicMaxComponents   = constants.TopicMaxComponents
	TopicMaxLength       = constants.TopicMaxLength
)
