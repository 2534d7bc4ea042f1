package synthesis

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"slack-mock/internal/domain"
)

// fileEvery: в среднем одно вложение на столько сообщений.
const fileEvery = 28

var fileNames = map[domain.FileType][]string{
	domain.FilePDF:          {"%s-runbook.pdf", "%s-postmortem.pdf", "q%d-review.pdf"},
	domain.FileImage:        {"%s-dashboard.png", "screenshot-%d.png", "%s-error-spike.png"},
	domain.FileDocument:     {"%s-rfc.docx", "%s-meeting-notes.docx", "onboarding-%d.docx"},
	domain.FileSpreadsheet:  {"%s-capacity.xlsx", "q%d-budget.xlsx", "%s-oncall-rota.xlsx"},
	domain.FilePresentation: {"%s-roadmap.pptx", "q%d-allhands.pptx", "%s-demo.key"},
	domain.FileCode:         {"%s-patch.diff", "%s-config.yaml", "migrate_%d.sql"},
	domain.FileVideo:        {"%s-walkthrough.mp4", "repro-%d.mov", "%s-demo.mp4"},
	domain.FileAudio:        {"%s-standup.m4a", "call-%d.mp3", "%s-sync.m4a"},
	domain.FileArchive:      {"%s-logs.zip", "heapdump-%d.tar.gz", "%s-artifacts.zip"},
}

// fileSizes: разумные пределы размера для вида файла, в байтах.
var fileSizes = map[domain.FileType][2]uint64{
	domain.FilePDF:          {120 << 10, 8 << 20},
	domain.FileImage:        {80 << 10, 4 << 20},
	domain.FileDocument:     {30 << 10, 2 << 20},
	domain.FileSpreadsheet:  {20 << 10, 3 << 20},
	domain.FilePresentation: {1 << 20, 40 << 20},
	domain.FileCode:         {1 << 10, 200 << 10},
	domain.FileVideo:        {8 << 20, 300 << 20},
	domain.FileAudio:        {2 << 20, 60 << 20},
	domain.FileArchive:      {5 << 20, 500 << 20},
}

// attachmentFor решает, прикладывает ли автор файл к сообщению. Решение выводится из хэша
// чата, автора и времени и не расходует общий источник случайности, поэтому история
// с тем же сидом не меняется. Ассистент файлов не прикладывает.
func attachmentFor(chat domain.Chat, who, assistant string, at time.Time, vocab Vocabulary) (domain.FileAttachment, bool) {
	if who == assistant {
		return domain.FileAttachment{}, false
	}
	h := hash32(chat.ID + "|" + who + "|" + strconv.FormatInt(at.UnixNano(), 10))
	if h%fileEvery != 0 {
		return domain.FileAttachment{}, false
	}
	h /= fileEvery
	ft := domain.FileTypes[h%uint32(len(domain.FileTypes))]
	h /= uint32(len(domain.FileTypes))

	subject := "team"
	if len(vocab.Services) > 0 {
		subject = vocab.Services[h%uint32(len(vocab.Services))]
	}
	names := fileNames[ft]
	pattern := names[(h>>4)%uint32(len(names))]
	var name string
	if strings.Contains(pattern, "%s") {
		name = fmt.Sprintf(pattern, domain.Slug(subject))
	} else {
		name = fmt.Sprintf(pattern, 1+h%97)
	}

	bounds := fileSizes[ft]
	size := bounds[0] + uint64(h)%(bounds[1]-bounds[0])
	icon, color := domain.FileStyle(ft)
	return domain.FileAttachment{
		Type:       ft,
		Name:       name,
		Size:       humanize.Bytes(size),
		UploadedBy: who,
		Icon:       icon,
		Color:      color,
	}, true
}
