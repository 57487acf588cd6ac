package models

// Room is a "Sala": the scheduling context videos are assigned to.
type Room struct {
	ID   int64  `json:"IdSala"`
	Name string `json:"Sala"`
}

// Course is a read-only "Curso" lookup.
type Course struct {
	ID   int64  `json:"IdCurso"`
	Code string `json:"CodigoCurso"`
	Name string `json:"Curso"`
}

// CourseModule is a read-only "ProductoTemario" lookup: a numbered module within a course.
type CourseModule struct {
	ID         int64  `json:"IdProductoTemario"`
	CourseID   int64  `json:"Curso_id"`
	Numeration string `json:"Numeracion"`
}
