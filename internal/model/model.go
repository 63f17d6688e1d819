package model

// Student is a record owned by the remote service. The client never
// assigns identifiers; it only reads, updates, or deletes by id.
type Student struct {
	ID                 int64  `json:"id"`
	StudentID          string `json:"student_id"`
	FullName           string `json:"full_name"`
	Email              string `json:"email,omitempty"`
	Phone              string `json:"phone,omitempty"`
	Department         string `json:"department,omitempty"`
	Program            string `json:"program,omitempty"`
	YearOfStudy        string `json:"year_of_study,omitempty"`
	DocumentType       string `json:"document_type,omitempty"`
	ExtractedText      string `json:"extracted_text,omitempty"`
	OriginalImagePath  string `json:"original_image_path,omitempty"`
	PhotoPath          string `json:"photo_path,omitempty"`
	ProcessedImagePath string `json:"processed_image_path,omitempty"`
	CreatedAt          string `json:"created_at"`
	UpdatedAt          string `json:"updated_at"`
}

// StudentUpdate carries a partial edit for PUT requests. Nil fields are
// omitted from the JSON body and left untouched by the server.
type StudentUpdate struct {
	StudentID   *string `json:"student_id,omitempty"`
	FullName    *string `json:"full_name,omitempty"`
	Email       *string `json:"email,omitempty"`
	Phone       *string `json:"phone,omitempty"`
	Department  *string `json:"department,omitempty"`
	Program     *string `json:"program,omitempty"`
	YearOfStudy *string `json:"year_of_study,omitempty"`
}

// SearchResponse is one page of records plus the total match count.
type SearchResponse struct {
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	PageSize int       `json:"page_size"`
	Students []Student `json:"students"`
}

// OCRResult describes what the service extracted from one document image.
type OCRResult struct {
	Success        bool              `json:"success"`
	ExtractedText  string            `json:"extracted_text,omitempty"`
	StudentData    map[string]string `json:"student_data,omitempty"`
	PhotoExtracted bool              `json:"photo_extracted"`
	Error          string            `json:"error,omitempty"`
}

// UploadResponse is the outcome of one document upload.
type UploadResponse struct {
	Success   bool       `json:"success"`
	Message   string     `json:"message"`
	Student   *Student   `json:"student,omitempty"`
	OCRResult *OCRResult `json:"ocr_result,omitempty"`
}

// DepartmentCount is one entry in the statistics department breakdown.
type DepartmentCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Statistics is the aggregate view over all stored records.
type Statistics struct {
	TotalStudents int               `json:"total_students"`
	RecentUploads int               `json:"recent_uploads"`
	Departments   []DepartmentCount `json:"departments"`
}

// User identifies the authenticated operator.
type User struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

// LoginResponse is the body of a successful login.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}
