package workflow

// ユーザーに表示する通知メッセージ
const (
	MsgAnalysisFailed  = "剧本解析失败，请检查 API Key 并重试。"
	MsgEditFailed      = "图片编辑失败，请尝试其他指令。"
	MsgExportFailed    = "导出失败，请重试"
	MsgReferenceFailed = "参考图解析失败，请重试。"
	MsgReferenceLimit  = "参考图最多 3 张。"

	MsgEmptyScript      = "请先输入剧本内容。"
	MsgEmptyInstruction = "请输入编辑指令。"
	MsgMissingImage     = "请先生成或上传图片。"
	MsgUnsupportedImage = "参考图需要上传图片文件，暂不支持网络链接。"
)
