package models

import "time"

// Fixed classification quadruple for live-module videos.
const (
	AttachmentTipo1 = "Multimedia"
	AttachmentTipo2 = "Video"
	AttachmentTipo3 = "Cursos"
	AttachmentTipo4 = "ModulosVivo"

	// AttachmentStatusActive is the Estado_id given to new attachments.
	AttachmentStatusActive = 1
)

// Attachment is a ProductoTemarioAdjunto row: a stored video assigned to a room and course module.
type Attachment struct {
	ID             int64      `json:"IdProductoTemarioAdjunto"`
	CourseModuleID *int64     `json:"ProductoTemario_id"`
	RoomID         *int64     `json:"Sala_id"`
	Tipo1          string     `json:"Tipo1,omitempty"`
	Tipo2          string     `json:"Tipo2,omitempty"`
	Tipo3          string     `json:"Tipo3,omitempty"`
	Tipo4          string     `json:"Tipo4,omitempty"`
	FileName       string     `json:"NombreArchivo"`
	DisplayName    string     `json:"NombreFinal"`
	Order          int        `json:"Orden"`
	StatusID       *int64     `json:"Estado_id"`
	LastModifiedAt *time.Time `json:"FechaModificacion,omitempty"`
}

// NewVideoAttachment builds a live-module video attachment with the fixed classification.
func NewVideoAttachment(courseModuleID, roomID int64, fileName, displayName string, order int) *Attachment {
	status := int64(AttachmentStatusActive)
	return &Attachment{
		CourseModuleID: &courseModuleID,
		RoomID:         &roomID,
		Tipo1:          AttachmentTipo1,
		Tipo2:          AttachmentTipo2,
		Tipo3:          AttachmentTipo3,
		Tipo4:          AttachmentTipo4,
		FileName:       fileName,
		DisplayName:    displayName,
		Order:          order,
		StatusID:       &status,
	}
}
