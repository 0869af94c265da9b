package diag

import (
	"fmt"
)

type Code uint16

const (
	// Неизвестная ошибка - на первое время
	UnknownCode Code = 0

	// I/O
	IOLoadFileError  Code = 100
	IOWriteFileError Code = 101

	// Конфигурация (фатальные: прогон прерывается до обработки файлов)
	ConfigInfo            Code = 200
	ConfigUnknownProvider Code = 201
	ConfigCoverageGap     Code = 202
	ConfigSchemaMismatch  Code = 203
	ConfigBadManifest     Code = 204

	// Сканер
	ScanInfo          Code = 1000
	ScanParseError    Code = 1001
	ScanUnknownParam  Code = 1002
	ScanMissingParam  Code = 1003
	ScanTooManyArgs   Code = 1004
	ScanBadCallShape  Code = 1005
	ScanOpaqueRequest Code = 1100 // warning: request value is not a literal
	ScanDynamicUse    Code = 1101 // warning: operation used as a value
	ScanMixedLiteral  Code = 1102 // warning: keyed and positional fields mixed

	// Рерайтер
	RewriteInfo      Code = 2000
	RewriteEvalOrder Code = 2001
	RewriteInternal  Code = 2002
)

func (c Code) String() string {
	switch c {
	case UnknownCode:
		return "IFR0000"
	default:
		return fmt.Sprintf("IFR%04d", uint16(c))
	}
}

// IsConfig reports whether the code belongs to the fatal configuration group.
func (c Code) IsConfig() bool {
	return c >= ConfigInfo && c < ScanInfo
}
