package workflow

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"transponster/internal/chat"
	"transponster/internal/services"
	"transponster/internal/services/gdrive"
)

// FilesWord returns the Ukrainian form of "file" that agrees with n.
func FilesWord(n int) string {
	mod10, mod100 := n%10, n%100
	switch {
	case mod10 == 1 && mod100 != 11:
		return "файл"
	case mod10 >= 2 && mod10 <= 4 && (mod100 < 10 || mod100 >= 20):
		return "файли"
	default:
		return "файлів"
	}
}

// StartupMessage is posted to the startup channel once the daemon is ready.
const StartupMessage = ":rocket: Я запустився і готовий до роботи."

// AckMessage acknowledges a batch of n uploads.
func AckMessage(n int) string {
	if n > 1 {
		return fmt.Sprintf(":saluting_face: Забираю в роботу %d %s. Відпишу тобі по кожному окремо, коли я буду готовий, або якщо поламаюся.", n, FilesWord(n))
	}
	return ":saluting_face: Забираю в роботу. Відпишу тобі, коли я буду готовий, або якщо поламаюся."
}

// NotMediaMessage rejects a file that is neither audio nor video.
func NotMediaMessage(name string) string {
	return fmt.Sprintf(":no_good: Сорі, файл `%s` не аудіо і не відео. Таке я тобі не розшифрую. Будь ласка, дай мені файл у форматі (%s).", name, mediaList())
}

// TooLargeMessage rejects a file above the size cap.
func TooLargeMessage(name string, maxMB int) string {
	return fmt.Sprintf(":no_good: Сорі, файл `%s` завеликий (>%d МБ).", name, maxMB)
}

// NoSpeechMessage reports a transcription without recognised words.
func NoSpeechMessage(name string) string {
	return fmt.Sprintf(":shushing_face: Сорі, у файлі `%s` я не почув жодного слова.", name)
}

// ErrorMessage reports an unexpected failure for one file.
func ErrorMessage(name string, err error) string {
	return fmt.Sprintf(":expressionless: Сорі, щось пішло не так з файлом `%s`. Помилка: %s", name, services.UserMessage(err))
}

// UploadComment accompanies an uploaded transcript or subtitle file.
func UploadComment(subtitles bool, name string) string {
	what := "розшифровка"
	if subtitles {
		what = "субтитри"
	}
	return fmt.Sprintf(":heavy_check_mark: Все вийшло, ось %s для файлу `%s`.", what, name)
}

// DriveMessage points the uploader to the documents created for a batch.
// It returns "" when no document was created.
func DriveMessage(folder gdrive.Document, created bool, docs []gdrive.Document, names []string) string {
	switch len(docs) {
	case 0:
		return ""
	case 1:
		if created {
			return fmt.Sprintf("📂 Я створив для тебе <%s|папку> у нас на Google Drive і поклав розшифровку туди. <%s|Ось твоє посилання на файл>.", folder.Link, docs[0].Link)
		}
		return fmt.Sprintf("📂 Цю розшифровку ти також знайдеш в <%s|оцій папці> як Word документ. <%s|Ось твоє посилання на файл>.", folder.Link, docs[0].Link)
	}
	var b strings.Builder
	fmt.Fprintf(&b, ":open_file_folder: Ці розшифровки ти також знайдеш в <%s|оцій папці> як Word документи.", folder.Link)
	for i, doc := range docs {
		fmt.Fprintf(&b, "\n• <%s|Ось твоє посилання на файл> `%s`.", doc.Link, names[i])
	}
	return b.String()
}

// SummaryMessage lists every file of a batch in arrival order.
func SummaryMessage(outcomes []outcome) string {
	var b strings.Builder
	b.WriteString(":clipboard: Ось що вийшло:")
	for i, out := range outcomes {
		fmt.Fprintf(&b, "\n%d. ", i+1)
		if out.failure != "" {
			b.WriteString(out.failure)
			continue
		}
		fmt.Fprintf(&b, "`%s` :white_check_mark: готово", out.name)
	}
	return b.String()
}

// TranslationDoneMessage accompanies a fully translated upload.
func TranslationDoneMessage(name, lang string) string {
	return fmt.Sprintf(":globe_with_meridians: Готово, ось переклад файлу `%s` (%s).", name, LanguageLabel(lang))
}

// TranslationPartialMessage accompanies an upload where some spans kept the
// original text.
func TranslationPartialMessage(name, lang string, untranslated, total int) string {
	return fmt.Sprintf(":warning: Переклад файлу `%s` (%s) готовий частково: %d з %d фрагментів залишилися мовою оригіналу.", name, LanguageLabel(lang), untranslated, total)
}

// TranslationFailedMessage reports a translation that produced nothing.
func TranslationFailedMessage(name, lang string, err error) string {
	reason := "жоден фрагмент не вдалося перекласти"
	if err != nil {
		reason = services.UserMessage(err)
	}
	return fmt.Sprintf(":expressionless: Сорі, не вдалося перекласти файл `%s` (%s). Помилка: %s", name, LanguageLabel(lang), reason)
}

// TranslationHeading titles the section appended to a Drive document.
func TranslationHeading(lang string) string {
	return fmt.Sprintf("Переклад (%s)", LanguageLabel(lang))
}

var ukrainianNames = display.Languages(language.Ukrainian)

// LanguageLabel names lang in Ukrainian, falling back to the tag itself.
func LanguageLabel(lang string) string {
	tag, err := language.Parse(lang)
	if err != nil || ukrainianNames == nil {
		return lang
	}
	if name := ukrainianNames.Name(tag); name != "" {
		return name
	}
	return lang
}

func mediaList() string {
	exts := chat.MediaExtensions
	quoted := make([]string, len(exts))
	for i, ext := range exts {
		quoted[i] = "`" + ext + "`"
	}
	if len(quoted) == 1 {
		return quoted[0]
	}
	return strings.Join(quoted[:len(quoted)-1], ", ") + " або " + quoted[len(quoted)-1]
}
