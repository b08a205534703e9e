// Package i18n holds the user-facing message catalog. Vietnamese is the
// primary locale; English is the fallback for every other language.
package i18n

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	LocaleVietnamese = "vi"
	LocaleEnglish    = "en"
)

// Message keys. English text doubles as the key.
const (
	MsgRefineFailed     = "Something went wrong while contacting the AI. Please try again."
	MsgPreviewFailed    = "Could not create the preview. %s"
	MsgConfirmVideoKey  = "Video generation (Veo) requires a paid Google API key. Do you want to open the key selector?"
	MsgEnterVideoKey    = "Paste the paid API key to use for video generation:"
	MsgBusy             = "Another request is still running. Please wait."
	MsgInvalidSettings  = "The settings are incomplete: %s"
	MsgQuotaExceeded    = "The service is busy right now. Please wait a moment and try again."
	MsgNoRefinedResult  = "Refine an idea before generating a preview."
	MsgPreviewCancelled = "Preview cancelled: no API key was selected."
)

var supported = []language.Tag{language.Vietnamese, language.English}

var matcher = language.NewMatcher(supported)

func init() {
	vi := language.Vietnamese
	set := func(key, msg string) { _ = message.SetString(vi, key, msg) }
	set(MsgRefineFailed, "Có lỗi xảy ra khi kết nối với AI. Vui lòng thử lại.")
	set(MsgPreviewFailed, "Không thể tạo bản xem trước. %s")
	set(MsgConfirmVideoKey, "Tính năng tạo Video (Veo) yêu cầu chọn API Key trả phí từ Google. Bạn có muốn mở cửa sổ chọn key không?")
	set(MsgEnterVideoKey, "Dán API Key trả phí dùng cho tạo video:")
	set(MsgBusy, "Một yêu cầu khác đang chạy. Vui lòng đợi.")
	set(MsgInvalidSettings, "Thiết lập chưa hợp lệ: %s")
	set(MsgQuotaExceeded, "Máy chủ đang quá tải. Vui lòng thử lại sau ít phút.")
	set(MsgNoRefinedResult, "Hãy tinh chỉnh ý tưởng trước khi tạo bản xem trước.")
	set(MsgPreviewCancelled, "Đã hủy bản xem trước: chưa chọn API Key.")
}

// Match picks the supported locale that best fits an Accept-Language style
// list. It returns "" when nothing in the list is usable.
func Match(preferences string) string {
	preferences = strings.TrimSpace(preferences)
	if preferences == "" {
		return ""
	}
	tags, _, err := language.ParseAcceptLanguage(preferences)
	if err != nil || len(tags) == 0 {
		return ""
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return LocaleEnglish
	}
	return Normalize(supported[idx].String())
}

// Normalize folds any locale string onto a supported locale.
func Normalize(locale string) string {
	tag, err := language.Parse(strings.TrimSpace(locale))
	if err != nil {
		return LocaleEnglish
	}
	base, _ := tag.Base()
	if base.String() == LocaleVietnamese {
		return LocaleVietnamese
	}
	return LocaleEnglish
}

// Printer returns a printer bound to locale.
func Printer(locale string) *message.Printer {
	if Normalize(locale) == LocaleVietnamese {
		return message.NewPrinter(language.Vietnamese)
	}
	return message.NewPrinter(language.English)
}

// Text renders key in locale.
func Text(locale, key string, args ...any) string {
	return Printer(locale).Sprintf(key, args...)
}
