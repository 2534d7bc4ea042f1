package domain

// EmbedType: вид внешнего инструмента, ссылку на который распознаёт аннотатор.
type EmbedType string

const (
	EmbedNotion     EmbedType = "notion"
	EmbedFigma      EmbedType = "figma"
	EmbedJira       EmbedType = "jira"
	EmbedConfluence EmbedType = "confluence"
	EmbedLoom       EmbedType = "loom"
	EmbedWorkday    EmbedType = "workday"
)

// EmbedTypes перечисляет все поддерживаемые типы в порядке обхода.
var EmbedTypes = []EmbedType{EmbedNotion, EmbedFigma, EmbedJira, EmbedConfluence, EmbedLoom, EmbedWorkday}

// EmbedConfig: декоративная карточка ссылки.
type EmbedConfig struct {
	Type  EmbedType `json:"type"`
	URL   string    `json:"url"`
	Title string    `json:"title"`
	Owner string    `json:"owner"`
}

// AppInfo описывает оформление карточки для типа ссылки.
type AppInfo struct {
	Name         string `json:"name"`
	Icon         string `json:"icon"`
	Color        string `json:"color"`
	LogoURL      string `json:"logoUrl"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
}

// FileType: вид вложенного файла.
type FileType string

const (
	FilePDF          FileType = "pdf"
	FileImage        FileType = "image"
	FileDocument     FileType = "document"
	FileSpreadsheet  FileType = "spreadsheet"
	FilePresentation FileType = "presentation"
	FileCode         FileType = "code"
	FileVideo        FileType = "video"
	FileAudio        FileType = "audio"
	FileArchive      FileType = "archive"
	FileOther        FileType = "other"
)

// FileTypes перечисляет виды вложений, которые умеет синтезировать генератор.
var FileTypes = []FileType{FilePDF, FileImage, FileDocument, FileSpreadsheet, FilePresentation, FileCode, FileVideo, FileAudio, FileArchive}

// FileAttachment: карточка файла под текстом сообщения.
type FileAttachment struct {
	Type       FileType `json:"type"`
	Name       string   `json:"name"`
	Size       string   `json:"size"`
	UploadedBy string   `json:"uploadedBy"`
	Icon       string   `json:"icon"`
	Color      string   `json:"color"`
}

var fileStyles = map[FileType]struct{ icon, color string }{
	FilePDF:          {"📄", "#DC143C"},
	FileImage:        {"🖼️", "#4CAF50"},
	FileDocument:     {"📝", "#2196F3"},
	FileSpreadsheet:  {"📊", "#FF9800"},
	FilePresentation: {"📽️", "#9C27B0"},
	FileCode:         {"💻", "#607D8B"},
	FileVideo:        {"🎥", "#E91E63"},
	FileAudio:        {"🎵", "#00BCD4"},
	FileArchive:      {"📦", "#795548"},
}

// FileStyle возвращает значок и цвет карточки. Неизвестный вид оформляется как скрепка.
func FileStyle(t FileType) (icon, color string) {
	if s, ok := fileStyles[t]; ok {
		return s.icon, s.color
	}
	return "📎", "#9E9E9E"
}
