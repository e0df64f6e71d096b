package worker

// Тексты деградированных результатов. Попадают в конверт и видны клиенту
// через justification решения.
const (
	// SentinelText — распознанный текст для тестового изображения.
	SentinelText = "This is a placeholder OCR result."

	// NoTextFound — изображение распознано, но текста нет.
	NoTextFound = "No text found in image."

	// ocrErrorPrefix — префикс текста при ошибке распознавания.
	ocrErrorPrefix = "Error during OCR: "

	// llmErrorPrefix — префикс обоснования при ошибке вызова LLM.
	llmErrorPrefix = "LLM Error: "

	// llmJSONErrorPrefix — префикс обоснования, когда ответ LLM не разобран.
	llmJSONErrorPrefix = "LLM JSON Error: "

	// feedbackProcessingError — отзыв студенту при неразобранном ответе.
	feedbackProcessingError = "Error processing evaluation."

	// feedbackAPIError — отзыв студенту при недоступности LLM.
	feedbackAPIError = "API connection failed."

	// feedbackMissingInput — отзыв студенту при пустой рубрике или тексте.
	feedbackMissingInput = "Nothing to grade."
)
