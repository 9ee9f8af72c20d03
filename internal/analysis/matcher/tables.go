package matcher

// Declarative matching tables. Pure data, loaded once; kept separate from the
// matching logic so weights can be tuned and tested in isolation.

// conditionTerm is one curated condition inside a terminology category.
type conditionTerm struct {
	term     string
	synonyms []string
	// weight is the base severity weight applied when the statement mentions
	// this condition.
	weight float64
}

// terminologyCategory groups condition terms under a body-system keyword set.
type terminologyCategory struct {
	// keywords trigger the category when found in the diagnosis text.
	keywords []string
	// critical categories (cardiovascular, renal, hepatic) get boosted.
	critical   bool
	conditions []conditionTerm
}

var terminologyCategories = map[string]terminologyCategory{
	"cardiovascular": {
		keywords: []string{"cardiac", "heart", "coronary", "myocardial", "cardio", "arrhythmia", "hypertension", "hypertensive"},
		critical: true,
		conditions: []conditionTerm{
			{term: "heart failure", synonyms: []string{"cardiac failure", "chf", "congestive heart failure"}, weight: 0.85},
			{term: "myocardial infarction", synonyms: []string{"heart attack", "mi"}, weight: 0.85},
			{term: "arrhythmia", synonyms: []string{"irregular heartbeat", "atrial fibrillation", "qt prolongation"}, weight: 0.8},
			{term: "hypertension", synonyms: []string{"high blood pressure", "elevated blood pressure"}, weight: 0.7},
			{term: "coronary artery disease", synonyms: []string{"ischemic heart disease", "angina"}, weight: 0.8},
			{term: "bradycardia", synonyms: []string{"slow heart rate"}, weight: 0.75},
		},
	},
	"renal": {
		keywords: []string{"renal", "kidney", "nephro", "nephritis", "dialysis"},
		critical: true,
		conditions: []conditionTerm{
			{term: "renal impairment", synonyms: []string{"kidney disease", "renal insufficiency", "renal failure", "kidney failure"}, weight: 0.85},
			{term: "chronic kidney disease", synonyms: []string{"ckd", "end stage renal disease", "esrd"}, weight: 0.85},
			{term: "nephrotoxicity", synonyms: []string{"kidney injury", "acute kidney injury"}, weight: 0.8},
		},
	},
	"hepatic": {
		keywords: []string{"hepatic", "liver", "hepatitis", "cirrhosis", "jaundice"},
		critical: true,
		conditions: []conditionTerm{
			{term: "hepatic impairment", synonyms: []string{"liver disease", "liver failure", "hepatic insufficiency"}, weight: 0.85},
			{term: "cirrhosis", synonyms: []string{"liver cirrhosis", "hepatic fibrosis"}, weight: 0.85},
			{term: "hepatitis", synonyms: []string{"liver inflammation"}, weight: 0.75},
		},
	},
	"respiratory": {
		keywords: []string{"asthma", "respiratory", "pulmonary", "bronchial", "copd", "bronchospasm"},
		conditions: []conditionTerm{
			{term: "asthma", synonyms: []string{"bronchial asthma", "reactive airway disease", "bronchospasm"}, weight: 0.8},
			{term: "copd", synonyms: []string{"chronic obstructive pulmonary disease", "emphysema", "chronic bronchitis"}, weight: 0.75},
			{term: "respiratory depression", synonyms: []string{"hypoventilation"}, weight: 0.85},
		},
	},
	"endocrine": {
		keywords: []string{"diabetes", "diabetic", "thyroid", "glycemic", "endocrine"},
		conditions: []conditionTerm{
			{term: "diabetes", synonyms: []string{"diabetes mellitus", "hyperglycemia", "diabetic"}, weight: 0.7},
			{term: "hypoglycemia", synonyms: []string{"low blood sugar"}, weight: 0.75},
			{term: "hyperthyroidism", synonyms: []string{"thyrotoxicosis", "overactive thyroid"}, weight: 0.7},
			{term: "hypothyroidism", synonyms: []string{"underactive thyroid"}, weight: 0.65},
		},
	},
	"gastrointestinal": {
		keywords: []string{"ulcer", "gastric", "gastrointestinal", "gi", "reflux", "bowel"},
		conditions: []conditionTerm{
			{term: "peptic ulcer", synonyms: []string{"gastric ulcer", "duodenal ulcer", "ulceration"}, weight: 0.8},
			{term: "gi bleeding", synonyms: []string{"gastrointestinal bleeding", "gastrointestinal hemorrhage"}, weight: 0.85},
		},
	},
	"hematologic": {
		keywords: []string{"bleeding", "anemia", "thrombocytopenia", "coagulation", "clotting"},
		conditions: []conditionTerm{
			{term: "bleeding disorder", synonyms: []string{"coagulopathy", "hemophilia", "bleeding risk", "hemorrhage"}, weight: 0.85},
			{term: "thrombocytopenia", synonyms: []string{"low platelet"}, weight: 0.8},
			{term: "anemia", synonyms: []string{"low hemoglobin"}, weight: 0.65},
		},
	},
	"psychiatric": {
		keywords: []string{"depression", "anxiety", "psychiatric", "bipolar", "psychosis", "seizure", "epilepsy"},
		conditions: []conditionTerm{
			{term: "depression", synonyms: []string{"major depressive disorder", "depressive"}, weight: 0.65},
			{term: "seizure", synonyms: []string{"epilepsy", "convulsion", "seizure disorder"}, weight: 0.8},
			{term: "suicidal ideation", synonyms: []string{"suicidality"}, weight: 0.85},
		},
	},
}

// criticalCategoryBoost is added to strategy-3 confidence for cardiovascular,
// renal, and hepatic matches.
const criticalCategoryBoost = 0.1

// exactTermBoost is added when the diagnosis text names the condition term
// itself rather than only a category keyword.
const exactTermBoost = 0.05

// synonymGroup is one semantic group in the medical-synonym dictionary.
type synonymGroup struct {
	terms      []string
	confidence float64
}

var synonymGroups = []synonymGroup{
	{terms: []string{"asthma", "bronchial asthma", "reactive airway disease", "bronchospasm"}, confidence: 0.95},
	{terms: []string{"hypertension", "high blood pressure", "elevated blood pressure", "hypertensive"}, confidence: 0.95},
	{terms: []string{"diabetes", "diabetes mellitus", "diabetic", "hyperglycemia"}, confidence: 0.9},
	{terms: []string{"kidney disease", "renal disease", "renal impairment", "renal insufficiency", "nephropathy"}, confidence: 0.9},
	{terms: []string{"liver disease", "hepatic impairment", "hepatic disease", "hepatic insufficiency"}, confidence: 0.9},
	{terms: []string{"heart failure", "cardiac failure", "congestive heart failure", "chf"}, confidence: 0.95},
	{terms: []string{"peptic ulcer", "gastric ulcer", "duodenal ulcer", "stomach ulcer"}, confidence: 0.9},
	{terms: []string{"bleeding", "hemorrhage", "blood loss"}, confidence: 0.85},
	{terms: []string{"seizure", "epilepsy", "convulsion"}, confidence: 0.9},
	{terms: []string{"depression", "major depressive disorder", "depressive disorder"}, confidence: 0.85},
	{terms: []string{"pregnancy", "pregnant", "gestation"}, confidence: 0.95},
}

// mechanismClass describes a drug mechanism class and the diagnosis keywords
// it is contraindicated against, with per-keyword severity.
type mechanismClass struct {
	name string
	// indicators identify the class in contraindication statement text.
	indicators []string
	// conditions map a diagnosis keyword to mechanism severity.
	conditions map[string]float64
}

var mechanismClasses = []mechanismClass{
	{
		name:       "ace-inhibitor",
		indicators: []string{"ace inhibitor", "angiotensin converting enzyme", "lisinopril", "enalapril", "ramipril"},
		conditions: map[string]float64{"renal": 0.85, "kidney": 0.85, "angioedema": 0.95, "hyperkalemia": 0.85, "pregnancy": 0.95},
	},
	{
		name:       "nsaid",
		indicators: []string{"nsaid", "nonsteroidal anti-inflammatory", "aspirin", "ibuprofen", "naproxen", "salicylate"},
		conditions: map[string]float64{"asthma": 0.85, "ulcer": 0.85, "bleeding": 0.9, "renal": 0.8, "kidney": 0.8, "heart failure": 0.75},
	},
	{
		name:       "beta-blocker",
		indicators: []string{"beta blocker", "beta-adrenergic", "metoprolol", "propranolol", "atenolol", "carvedilol"},
		conditions: map[string]float64{"asthma": 0.85, "copd": 0.75, "bradycardia": 0.9, "heart block": 0.9},
	},
	{
		name:       "anticoagulant",
		indicators: []string{"anticoagulant", "warfarin", "heparin", "apixaban", "rivaroxaban", "blood thinner"},
		conditions: map[string]float64{"bleeding": 0.95, "ulcer": 0.85, "hemorrhage": 0.95, "hepatic": 0.75, "liver": 0.75},
	},
	{
		name:       "statin",
		indicators: []string{"statin", "hmg-coa reductase", "atorvastatin", "simvastatin", "rosuvastatin"},
		conditions: map[string]float64{"hepatic": 0.85, "liver": 0.85, "myopathy": 0.8, "rhabdomyolysis": 0.9},
	},
	{
		name:       "biguanide",
		indicators: []string{"metformin", "biguanide"},
		conditions: map[string]float64{"renal": 0.85, "kidney": 0.85, "lactic acidosis": 0.95, "hepatic": 0.75},
	},
	{
		name:       "opioid",
		indicators: []string{"opioid", "morphine", "oxycodone", "hydrocodone", "fentanyl", "codeine"},
		conditions: map[string]float64{"respiratory depression": 0.95, "copd": 0.8, "asthma": 0.75, "sleep apnea": 0.85},
	},
}

// mechanismConfidenceFactor scales mechanism severity into strategy-5 confidence.
const mechanismConfidenceFactor = 0.8

// synonymGroupFactor scales group confidence into strategy-4 confidence.
const synonymGroupFactor = 0.85
