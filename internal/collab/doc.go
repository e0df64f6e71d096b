// Package collab содержит клиенты внешних сервисов конвейера.
//
//   - OCRClient    — распознавание текста на изображении
//   - LLMClient    — оценивание ответа по рубрике (OpenAI-совместимый chat completions API)
//   - OPAPolicy    — решение по оценке (Open Policy Agent, POST {"input": ...})
//   - StaticPolicy — пороговая policy для локального режима
//
// Каждый вызов ограничивается таймаутом через Call; истечение таймаута —
// ErrTimeout, любые другие сбои — ErrCollaborator или ErrMalformedResponse.
package collab
