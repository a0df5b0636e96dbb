package ai

import (
	"fmt"
	"strings"

	"soilchat/internal/models"
	"soilchat/internal/soil"
)

// Language selects the prompt set. Anything other than Hindi is English.
type Language string

const (
	English Language = "en"
	Hindi   Language = "hi"
)

// ParseLanguage maps a request value to a Language.
func ParseLanguage(s string) Language {
	if strings.EqualFold(strings.TrimSpace(s), string(Hindi)) {
		return Hindi
	}
	return English
}

const nutrientJSONTemplate = `{
  "N": <value>,
  "P": <value>,
  "K": <value>,
  "ph": <value>,
  "ec": <value>,
  "oc": <value>,
  "S": <value>,
  "zn": <value>,
  "fe": <value>,
  "cu": <value>,
  "Mn": <value>,
  "B": <value>
}`

const extractPromptEN = `You are an expert soil test report analyzer. Please carefully extract ALL nutrient values from this lab report image.

STEP 1: First, read ALL text and numbers visible in the image
STEP 2: Look for these nutrients (they may appear with different names):

NITROGEN: N, Nitrogen, NH4+, Nitrate, Available N, Total N
PHOSPHORUS: P, P2O5, Phosphorus, Available P, Olsen P
POTASSIUM: K, K2O, Potassium, Available K, Exchangeable K
pH: pH, Acidity, Soil Reaction (Range: 4.0-9.0)
EC: EC, Electrical Conductivity, Salinity, Salt Content
OC: OC, Organic Carbon, OM (Organic Matter), Carbon %
SULFUR: S, Sulfur, SO4, Available S
ZINC: Zn, Zinc
IRON: Fe, Iron
COPPER: Cu, Copper
MANGANESE: Mn, Manganese
BORON: B, Boron

STEP 3: Look in tables, charts, and text sections
STEP 4: Check for ratings like "LOW", "MEDIUM", "HIGH" and convert:
- LOW: Use lower range values
- MEDIUM: Use middle range values
- HIGH: Use upper range values

STEP 5: Return ONLY this JSON format (no extra text):
` + nutrientJSONTemplate + `

IMPORTANT:
- Extract exact numbers from the image
- If a value is not found, use 0
- Pay attention to decimal points
- Look carefully at all text in the image`

const extractPromptHI = `आप एक विशेषज्ञ मिट्टी परीक्षण रिपोर्ट विश्लेषक हैं। कृपया इस छवि से सभी पोषक तत्व मान सावधानीपूर्वक निकालें।

चरण 1: पहले छवि में सभी टेक्स्ट और संख्याओं को पढ़ें
चरण 2: निम्नलिखित पोषक तत्वों की तलाश करें (विभिन्न नामों में):

NITROGEN (नाइट्रोजन): N, Nitrogen, नाइट्रोजन, NH4+, Nitrate
PHOSPHORUS (फॉस्फोरस): P, P2O5, Phosphorus, फॉस्फोरस, Available P
POTASSIUM (पोटैशियम): K, K2O, Potassium, पोटैशियम, Available K
pH (अम्लता): pH, Acidity, अम्लता
EC (विद्युत चालकता): EC, Electrical Conductivity, Salinity
OC (कार्बनिक कार्बन): OC, Organic Carbon, कार्बनिक कार्बन, OM
SULFUR (सल्फर): S, Sulfur, सल्फर, SO4
ZINC (जिंक): Zn, Zinc, जिंक
IRON (आयरन): Fe, Iron, आयरन
COPPER (कॉपर): Cu, Copper, कॉपर
MANGANESE (मैंगनीज): Mn, Manganese, मैंगनीज
BORON (बोरॉन): B, Boron, बोरॉन

चरण 3: केवल JSON में उत्तर दें:
` + nutrientJSONTemplate + `

महत्वपूर्ण: यदि कोई मान नहीं मिला, तो उसके लिए 0 डालें।`

const describeImagePrompt = `Please read and extract ALL text visible in this image.
List everything you can see - numbers, words, labels, headings, table contents, etc.
Be very detailed and include all text elements.`

const actionBlock = "```json\n" + `{
  "action": "analyze_fertility",
  "nutrients": {
    "N": <value>, "P": <value>, "K": <value>, "ph": <value>,
    "ec": <value>, "oc": <value>, "S": <value>, "zn": <value>,
    "fe": <value>, "cu": <value>, "Mn": <value>, "B": <value>
  },
  "message": "%s"
}` + "\n```"

var chatContextEN = `You are an expert agricultural AI assistant specializing in soil analysis and farming.

CRITICAL INSTRUCTIONS - READ CAREFULLY:

When the user provides ANY of these nutrient values: N, P, K, pH, EC, OC, S, Zn, Fe, Cu, Mn, B
You MUST respond with THIS EXACT JSON format (no extra text, just the JSON):

` + fmt.Sprintf(actionBlock, "I'll analyze your soil fertility now!") + `

EXAMPLES:
User: "N=245, P=8.1, K=560" → Return JSON with these values (fill missing with 0)
User: "analyze my soil with nitrogen 200" → Return JSON with N=200, rest 0
User: "Can you check N=245 P=8.1 K=560 pH=7.3" → Return JSON

For OTHER questions (crops, advice, general farming), respond normally with helpful text.

When analyzing images, provide detailed observations about soil type, color, and crops.

Be friendly, helpful, and practical. Respond in English.`

var chatContextHI = `आप एक विशेषज्ञ कृषि AI सहायक हैं जो मिट्टी विश्लेषण और खेती में विशेषज्ञता रखते हैं।

महत्वपूर्ण निर्देश - ध्यान से पढ़ें:

जब उपयोगकर्ता इन पोषक तत्व मानों में से कोई भी प्रदान करता है: N, P, K, pH, EC, OC, S, Zn, Fe, Cu, Mn, B
आपको इस सटीक JSON प्रारूप में उत्तर देना चाहिए (कोई अतिरिक्त पाठ नहीं, केवल JSON):

` + fmt.Sprintf(actionBlock, "मैं अब आपकी मिट्टी की उर्वरता का विश्लेषण करूंगा!") + `

उदाहरण:
उपयोगकर्ता: "N=245, P=8.1, K=560" → इन मानों के साथ JSON लौटाएं (गायब को 0 से भरें)
उपयोगकर्ता: "नाइट्रोजन 200 के साथ मेरी मिट्टी का विश्लेषण करें" → N=200, बाकी 0 के साथ JSON लौटाएं

अन्य प्रश्नों (फसलें, सलाह, सामान्य खेती) के लिए, सहायक पाठ के साथ सामान्य रूप से उत्तर दें।

छवियों का विश्लेषण करते समय, मिट्टी के प्रकार, रंग और फसलों के बारे में विस्तृत अवलोकन प्रदान करें।

मैत्रीपूर्ण, सहायक और व्यावहारिक रहें। सभी उत्तर हिंदी में दें।`

const toolHint = `You have access to a soil fertility analyzer tool. If the user provides nutrient data (N, P, K, pH, EC, OC, S, Zn, Fe, Cu, Mn, B),
tell them you can analyze it and ask if they'd like you to run the analysis.`

// ExtractionPrompt returns the lab report extraction prompt for lang.
func ExtractionPrompt(lang Language) string {
	if lang == Hindi {
		return extractPromptHI
	}
	return extractPromptEN
}

// ChatContext returns the system context for lang.
func ChatContext(lang Language) string {
	if lang == Hindi {
		return chatContextHI
	}
	return chatContextEN
}

// ChatPrompt describes one chat turn to render.
type ChatPrompt struct {
	Language Language
	// History is the stored conversation ending with the current user turn.
	History  []*models.Message
	Message  string
	HasImage bool
	// ToolHint appends the analyzer hint to text only prompts.
	ToolHint bool
}

// Render builds the full prompt. The newest history entry is the message
// being answered and is not repeated under "Recent conversation".
func (p ChatPrompt) Render() string {
	var b strings.Builder
	b.WriteString(ChatContext(p.Language))
	if len(p.History) > 1 {
		b.WriteString("\n\nRecent conversation:\n")
		for _, m := range p.History[:len(p.History)-1] {
			fmt.Fprintf(&b, "%s: %s\n", roleName(m.Role), m.Content)
		}
	}
	switch {
	case p.HasImage:
		fmt.Fprintf(&b, "\n\nUser sent an image and says: %s\n\nPlease analyze the image and respond to the user.\nAssistant:", p.Message)
	case p.ToolHint:
		fmt.Fprintf(&b, "\n\n%s\n\nUser: %s\nAssistant:", toolHint, p.Message)
	default:
		fmt.Fprintf(&b, "\n\nUser: %s\nAssistant:", p.Message)
	}
	return b.String()
}

func roleName(r models.Role) string {
	s := string(r)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// VerificationPrompt asks the model to review an ML fertility prediction.
func VerificationPrompt(r soil.Record, mlPrediction string) string {
	var b strings.Builder
	b.WriteString("You are an expert soil scientist and agronomist. Please analyze the following soil nutrient data and verify the machine learning model's fertility prediction.\n\n")
	b.WriteString("SOIL NUTRIENT DATA:\n")
	fmt.Fprintf(&b, "- Nitrogen (N): %s kg/ha\n", num(r.N))
	fmt.Fprintf(&b, "- Phosphorus (P): %s kg/ha\n", num(r.P))
	fmt.Fprintf(&b, "- Potassium (K): %s kg/ha\n", num(r.K))
	fmt.Fprintf(&b, "- pH: %s\n", num(r.PH))
	fmt.Fprintf(&b, "- Electrical Conductivity (EC): %s dS/m\n", num(r.EC))
	fmt.Fprintf(&b, "- Organic Carbon (OC): %s %%\n", num(r.OC))
	fmt.Fprintf(&b, "- Sulfur (S): %s ppm\n", num(r.S))
	fmt.Fprintf(&b, "- Zinc (Zn): %s ppm\n", num(r.Zn))
	fmt.Fprintf(&b, "- Iron (Fe): %s ppm\n", num(r.Fe))
	fmt.Fprintf(&b, "- Copper (Cu): %s ppm\n", num(r.Cu))
	fmt.Fprintf(&b, "- Manganese (Mn): %s ppm\n", num(r.Mn))
	fmt.Fprintf(&b, "- Boron (B): %s ppm\n\n", num(r.B))
	fmt.Fprintf(&b, "MACHINE LEARNING MODEL PREDICTION: %s\n\n", mlPrediction)
	b.WriteString(verificationFormat)
	return b.String()
}

func num(v float64) string {
	return fmt.Sprintf("%g", v)
}

const verificationFormat = `Please provide your analysis in the following JSON format:
{
  "ai_prediction": "Highly Fertile" | "Fertile" | "Less Fertile",
  "confidence": "High" | "Medium" | "Low",
  "agreement_with_ml": "Agree" | "Partially Agree" | "Disagree",
  "key_observations": [
    "observation 1",
    "observation 2",
    "observation 3"
  ],
  "nutrient_analysis": {
    "strengths": ["strength 1", "strength 2"],
    "deficiencies": ["deficiency 1", "deficiency 2"],
    "concerns": ["concern 1", "concern 2"]
  },
  "recommendations": [
    "recommendation 1",
    "recommendation 2",
    "recommendation 3"
  ],
  "suitable_crops": [
    "crop 1",
    "crop 2",
    "crop 3"
  ],
  "explanation": "Detailed explanation of your assessment and reasoning"
}

Focus on:
1. Whether you agree with the ML model's prediction and why
2. Key nutrient levels that support or contradict the prediction
3. Specific recommendations for improving soil fertility
4. Crops that would thrive in this soil condition
5. Any potential issues or concerns with the nutrient balance`
