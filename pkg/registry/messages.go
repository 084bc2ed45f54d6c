package registry

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

var (
	Korean  = language.Korean
	English = language.English

	// Languages lists the message languages, the default first.
	Languages = []language.Tag{Korean, English}
)

// FieldKey names a transport-level validation message.
type FieldKey string

const (
	FieldRequired FieldKey = "field.required"
	FieldTooLong  FieldKey = "field.too_long"
	FieldInvalid  FieldKey = "field.invalid"
)

var texts = map[string][2]string{ // key -> {ko, en}
	string(CodeEmptyExtension):     {"확장자를 입력해주세요.", "Please enter an extension."},
	string(CodeExtensionTooLong):   {"확장자는 최대 20자까지 입력 가능합니다.", "Extensions may be at most 20 characters long."},
	string(CodeInvalidExtension):   {"유효하지 않은 확장자입니다. 영문과 숫자만 사용할 수 있습니다.", "Invalid extension. Only letters and digits are allowed."},
	string(CodePathTraversal):      {"경로 문자(/, \\, ..)는 사용할 수 없습니다.", "Path characters (/, \\, ..) are not allowed."},
	string(CodeDuplicateExtension): {"이미 등록된 확장자입니다.", "The extension is already registered."},
	string(CodeMaxCustomExceeded):  {"커스텀 확장자는 최대 200개까지 등록할 수 있습니다.", "At most 200 custom extensions can be registered."},
	string(CodeExtensionNotFound):  {"해당 확장자를 찾을 수 없습니다.", "The extension was not found."},
	string(CodeCannotDeleteFixed):  {"고정 확장자는 삭제할 수 없습니다.", "Fixed extensions cannot be deleted."},
	string(CodeCannotToggleCustom): {"커스텀 확장자는 활성 상태를 변경할 수 없습니다.", "Custom extensions cannot be toggled."},
	string(CodeValidation):         {"유효성 검사 실패", "Validation failed."},
	string(CodeInternal):           {"서버 오류가 발생했습니다.", "An internal server error occurred."},
	string(FieldRequired):          {"확장자를 입력해주세요.", "Please enter an extension."},
	string(FieldTooLong):           {"확장자는 최대 20자까지 입력 가능합니다.", "Extensions may be at most 20 characters long."},
	string(FieldInvalid):           {"요청 형식이 올바르지 않습니다.", "The request body is malformed."},
}

var messages = newCatalog()

func newCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(Korean))
	for key, text := range texts {
		// Keys and texts are static; SetString only fails on malformed tags.
		_ = b.SetString(Korean, key, text[0])
		_ = b.SetString(English, key, text[1])
	}
	return b
}

// Message returns the localized text for code.
func Message(tag language.Tag, code Code) string {
	return lookup(tag, string(code))
}

// FieldMessage returns the localized text for a request validation failure.
func FieldMessage(tag language.Tag, key FieldKey) string {
	return lookup(tag, string(key))
}

func lookup(tag language.Tag, key string) string {
	p := message.NewPrinter(tag, message.Catalog(messages))
	return p.Sprintf(key)
}

// ParseLanguage resolves a BCP 47 tag to one of Languages.
func ParseLanguage(s string) (language.Tag, error) {
	tag, err := language.Parse(s)
	if err != nil {
		return language.Und, fmt.Errorf("parse language %q: %w", s, err)
	}
	matcher := language.NewMatcher(Languages)
	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		return language.Und, fmt.Errorf("unsupported language: %s", s)
	}
	return Languages[idx], nil
}
