package model

type Document struct {
	DocumentID       uint64   `gorm:"column:document_id;primaryKey;autoIncrement"`
	Filename         string   `gorm:"column:filename;type:text;not null"`
	OriginalFilename string   `gorm:"column:original_filename;type:text;not null"`
	FilePath         string   `gorm:"column:file_path;type:text;not null"`
	FileSize         int64    `gorm:"column:file_size;not null;default:0"`
	FileType         string   `gorm:"column:file_type;type:text;not null"`
	Status           string   `gorm:"column:status;type:text;not null;default:pending;index"`
	DocumentType     *string  `gorm:"column:document_type;type:text;index"`
	ConfidenceScore  *float64 `gorm:"column:confidence_score"`
	ProcessingTime   *float64 `gorm:"column:processing_time"`
	ExtractedData    *string  `gorm:"column:extracted_data;type:text"`
	ValidationErrors *string  `gorm:"column:validation_errors;type:text"`
	ErrorMessage     *string  `gorm:"column:error_message;type:text"`
	RetryCount       int      `gorm:"column:retry_count;not null;default:0"`
	Exported         bool     `gorm:"column:exported;not null;default:0"`
	ExportPath       *string  `gorm:"column:export_path;type:text"`
	CreatedAt        string   `gorm:"column:created_at;type:text;not null"`
	UpdatedAt        string   `gorm:"column:updated_at;type:text;not null"`
	ProcessedAt      *string  `gorm:"column:processed_at;type:text"`
}

func (Document) TableName() string {
	return "documents"
}
