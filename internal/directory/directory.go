package directory

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"CheckinKiosk/internal/model"
	pkgerrors "CheckinKiosk/pkg/errors"
)

// Gateway resolves student numbers to directory records. The check-in
// pipeline only ever calls Lookup; the management operations below exist
// for cmd/addstudent and never run on the scan path.
type Gateway struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Gateway {
	return &Gateway{db: db}
}

// Lookup finds a student by external number. Returns
// pkgerrors.StudentNotFound when absent; never creates records.
func (g *Gateway) Lookup(ctx context.Context, studentNumber int64) (*model.Student, error) {
	var st model.Student
	err := g.db.WithContext(ctx).
		Where("student_number = ?", studentNumber).
		First(&st).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.StudentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query student %d: %w", studentNumber, err)
	}
	return &st, nil
}

// Upsert inserts or updates a student by number and returns the row.
func (g *Gateway) Upsert(ctx context.Context, studentNumber int64, name, email1, email2 string, qrPNG []byte) (*model.Student, error) {
	var st model.Student
	err := g.db.WithContext(ctx).
		Where("student_number = ?", studentNumber).
		First(&st).Error

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		st = model.Student{
			StudentNumber: studentNumber,
			Name:          name,
			Email1:        email1,
			Email2:        email2,
			Status:        model.ActionExit,
			QRCode:        qrPNG,
		}
		if st.Name == "" {
			st.Name = fmt.Sprintf("Aluno %d", studentNumber)
		}
		if err := g.db.WithContext(ctx).Create(&st).Error; err != nil {
			return nil, fmt.Errorf("failed to create student %d: %w", studentNumber, err)
		}
		return &st, nil
	case err != nil:
		return nil, fmt.Errorf("failed to query student %d: %w", studentNumber, err)
	}

	updates := map[string]interface{}{"name": name}
	if email1 != "" {
		updates["email1"] = email1
	}
	if email2 != "" {
		updates["email2"] = email2
	}
	if qrPNG != nil {
		updates["qr_code"] = qrPNG
	}
	if err := g.db.WithContext(ctx).Model(&st).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update student %d: %w", studentNumber, err)
	}
	return &st, nil
}

// List returns students matching the optional query against number,
// name or emails, ordered by name.
func (g *Gateway) List(ctx context.Context, query string, limit, offset int) ([]model.Student, error) {
	tx := g.db.WithContext(ctx).Model(&model.Student{})
	if query != "" {
		q := "%" + query + "%"
		tx = tx.Where(
			"CAST(student_number AS CHAR) LIKE ? OR name LIKE ? OR email1 LIKE ? OR email2 LIKE ?",
			q, q, q, q,
		)
	}

	var out []model.Student
	err := tx.Order("name ASC, student_number ASC").
		Limit(limit).Offset(offset).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	return out, nil
}

// Delete removes a student and their events. Administrative only.
func (g *Gateway) Delete(ctx context.Context, studentNumber int64) (int64, error) {
	var st model.Student
	err := g.db.WithContext(ctx).
		Where("student_number = ?", studentNumber).
		First(&st).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query student %d: %w", studentNumber, err)
	}

	if err := g.db.WithContext(ctx).Where("student_id = ?", st.ID).Delete(&model.CheckinEvent{}).Error; err != nil {
		return 0, fmt.Errorf("failed to delete events for student %d: %w", studentNumber, err)
	}
	res := g.db.WithContext(ctx).Delete(&st)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete student %d: %w", studentNumber, res.Error)
	}
	return res.RowsAffected, nil
}
