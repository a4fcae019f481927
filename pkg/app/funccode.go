package app

// FunctionCode identifies the operation carried by an application fragment:
// a small uint8 enum with a String() method, one named constant per DNP3
// function code.
type FunctionCode uint8

const (
	FCConfirm              FunctionCode = 0
	FCRead                 FunctionCode = 1
	FCWrite                FunctionCode = 2
	FCSelect               FunctionCode = 3
	FCOperate              FunctionCode = 4
	FCDirectOperate        FunctionCode = 5
	FCDirectOperateNoAck   FunctionCode = 6
	FCImmediateFreeze      FunctionCode = 7
	FCImmediateFreezeNoAck FunctionCode = 8
	FCFreezeClear          FunctionCode = 9
	FCFreezeClearNoAck     FunctionCode = 10
	FCFreezeAtTime         FunctionCode = 30
	FCFreezeAtTimeNoAck    FunctionCode = 31
	FCColdRestart          FunctionCode = 13
	FCWarmRestart          FunctionCode = 14
	FCInitializeData       FunctionCode = 15
	FCInitializeApp        FunctionCode = 16
	FCStartApp             FunctionCode = 17
	FCStopApp              FunctionCode = 18
	FCSaveConfig           FunctionCode = 19
	FCEnableUnsolicited    FunctionCode = 20
	FCDisableUnsolicited   FunctionCode = 21
	FCAssignClass          FunctionCode = 22
	FCDelayMeasure         FunctionCode = 23
	FCRecordCurrentTime    FunctionCode = 24
	FCOpenFile             FunctionCode = 25
	FCCloseFile            FunctionCode = 26
	FCDeleteFile           FunctionCode = 27
	FCGetFileInfo          FunctionCode = 28
	FCAuthenticateFile     FunctionCode = 29
	FCAbortFile            FunctionCode = 32
	FCActivateConfig       FunctionCode = 33
	FCAuthRequest          FunctionCode = 34
	FCAuthRequestNoAck     FunctionCode = 35
	FCResponse             FunctionCode = 129
	FCUnsolicitedResponse  FunctionCode = 130
	FCAuthResponse         FunctionCode = 131
)

func (fc FunctionCode) String() string {
	switch fc {
	case FCConfirm:
		return "CONFIRM"
	case FCRead:
		return "READ"
	case FCWrite:
		return "WRITE"
	case FCSelect:
		return "SELECT"
	case FCOperate:
		return "OPERATE"
	case FCDirectOperate:
		return "DIRECT_OPERATE"
	case FCDirectOperateNoAck:
		return "DIRECT_OPERATE_NO_ACK"
	case FCImmediateFreeze:
		return "IMMEDIATE_FREEZE"
	case FCImmediateFreezeNoAck:
		return "IMMEDIATE_FREEZE_NO_ACK"
	case FCFreezeClear:
		return "FREEZE_CLEAR"
	case FCFreezeClearNoAck:
		return "FREEZE_CLEAR_NO_ACK"
	case FCFreezeAtTime:
		return "FREEZE_AT_TIME"
	case FCFreezeAtTimeNoAck:
		return "FREEZE_AT_TIME_NO_ACK"
	case FCColdRestart:
		return "COLD_RESTART"
	case FCWarmRestart:
		return "WARM_RESTART"
	case FCEnableUnsolicited:
		return "ENABLE_UNSOLICITED"
	case FCDisableUnsolicited:
		return "DISABLE_UNSOLICITED"
	case FCAssignClass:
		return "ASSIGN_CLASS"
	case FCDelayMeasure:
		return "DELAY_MEASURE"
	case FCRecordCurrentTime:
		return "RECORD_CURRENT_TIME"
	case FCOpenFile, FCCloseFile, FCDeleteFile, FCGetFileInfo, FCAuthenticateFile, FCAbortFile:
		return "FILE_TRANSFER"
	case FCActivateConfig:
		return "ACTIVATE_CONFIG"
	case FCAuthRequest, FCAuthRequestNoAck, FCAuthResponse:
		return "AUTHENTICATE"
	case FCResponse:
		return "RESPONSE"
	case FCUnsolicitedResponse:
		return "UNSOLICITED_RESPONSE"
	default:
		return "UNKNOWN"
	}
}

// IsFileTransfer reports whether fc is one of the file-transfer codes this
// stack recognizes on the wire but does not implement (file transfer's
// object model is out of scope; recognizing the code lets the application
// parser still produce a structurally valid NOT_SUPPORTED response instead
// of silently desynchronizing).
func (fc FunctionCode) IsFileTransfer() bool {
	switch fc {
	case FCOpenFile, FCCloseFile, FCDeleteFile, FCGetFileInfo, FCAuthenticateFile, FCAbortFile:
		return true
	default:
		return false
	}
}

// IsAuthenticate reports whether fc falls in the Secure Authentication
// range, which the core ignores.
func (fc FunctionCode) IsAuthenticate() bool {
	return fc == FCAuthRequest || fc == FCAuthRequestNoAck || fc == FCAuthResponse
}
