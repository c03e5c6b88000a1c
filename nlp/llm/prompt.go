package llm

import "fmt"

// systemPrompt instructs the model to emit the action schema as JSON.
const systemPrompt = `You are an assistant that extracts structured activities and achievements from a user's daily diary entry in Russian.

Your task:
1. Identify all activities and achievements mentioned in the text
2. For each action, determine:
   - category (e.g., спорт, учёба, готовка, работа, творчество, саморазвитие, социальное, дом)
   - subcategory (optional, e.g., бодибилдинг, математика, программирование)
   - action (short description of what was done)
   - type: "activity" (regular action) or "achievement" (significant accomplishment)
   - estimated_time_minutes (conservative estimate)
   - confidence (0.0 to 1.0, how certain you are)
   - achievement_weight (only for achievements, 5-25 based on significance)

Guidelines:
- Be conservative with time estimates
- Mark as achievement only if it's a significant accomplishment (first time, record, completion, etc.)
- Use confidence < 0.5 for ambiguous items
- Always output valid JSON following the schema
- Do not add extra commentary

Output format (JSON only):
{
  "actions": [
    {
      "category": "string",
      "subcategory": "string or null",
      "action": "string",
      "type": "activity or achievement",
      "estimated_time_minutes": number,
      "confidence": number (0.0-1.0),
      "achievement_weight": number or null (5-25 for achievements)
    }
  ]
}`

// fewShotExamples anchor the output format. Three are enough; more adds
// tokens without moving quality.
const fewShotExamples = `Example 1:
Input: Сходил в зал, пожал сотку, приготовил курочку
Output: {"actions": [{"category": "спорт", "subcategory": null, "action": "сходил в зал", "type": "activity", "estimated_time_minutes": 90, "confidence": 0.95, "achievement_weight": null}, {"category": "спорт", "subcategory": "бодибилдинг", "action": "пожал сотку", "type": "achievement", "estimated_time_minutes": 5, "confidence": 0.9, "achievement_weight": 15}, {"category": "готовка", "subcategory": null, "action": "приготовил курочку", "type": "activity", "estimated_time_minutes": 40, "confidence": 0.9, "achievement_weight": null}]}

Example 2:
Input: Читал 2 часа по линейной алгебре, сделал домашку
Output: {"actions": [{"category": "учёба", "subcategory": "математика", "action": "читал по линейной алгебре", "type": "activity", "estimated_time_minutes": 120, "confidence": 0.95, "achievement_weight": null}, {"category": "учёба", "subcategory": null, "action": "сделал домашку", "type": "activity", "estimated_time_minutes": 60, "confidence": 0.85, "achievement_weight": null}]}

Example 3:
Input: Впервые пробежал 10 км без остановок!
Output: {"actions": [{"category": "спорт", "subcategory": "кардио", "action": "пробежал 10 км без остановок", "type": "achievement", "estimated_time_minutes": 60, "confidence": 0.95, "achievement_weight": 20}]}`

func buildUserPrompt(text string) string {
	return fmt.Sprintf("%s\n\nNow analyze this diary entry:\nInput: %s\nOutput:", fewShotExamples, text)
}
