package model

// Student is a directory record. The check-in pipeline only reads it;
// creation and edits happen out-of-band (cmd/addstudent).
type Student struct {
	BaseModel
	StudentNumber int64  `gorm:"uniqueIndex;not null" json:"student_number"`
	Name          string `gorm:"type:varchar(255);not null" json:"name"`
	Email1        string `gorm:"type:varchar(255)" json:"email1,omitempty"`
	Email2        string `gorm:"type:varchar(255)" json:"email2,omitempty"`
	Status        Action `gorm:"type:varchar(16);not null;default:'Saída'" json:"status"`
	QRCode        []byte `gorm:"type:mediumblob" json:"-"`
}

func (Student) TableName() string {
	return "students"
}

// Emails returns the non-empty guardian addresses.
func (s *Student) Emails() []string {
	var out []string
	if s.Email1 != "" {
		out = append(out, s.Email1)
	}
	if s.Email2 != "" {
		out = append(out, s.Email2)
	}
	return out
}
