package model

type ProcessingLog struct {
	LogID      uint64 `gorm:"column:log_id;primaryKey;autoIncrement"`
	DocumentID uint64 `gorm:"column:document_id;not null;index"`
	EventType  string `gorm:"column:event_type;type:text;not null"`
	Message    string `gorm:"column:message;type:text;not null"`
	Details    string `gorm:"column:details;type:text;not null"`
	CreatedAt  string `gorm:"column:created_at;type:text;not null"`
}

func (ProcessingLog) TableName() string {
	return "processing_logs"
}
