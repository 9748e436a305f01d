package usecase

// segmentationPrompt is the fixed classification instruction. The aggregated
// event summary is appended by the gateway as the context object.
const segmentationPrompt = `Analyze these user behavior events and classify the visitor into ONE segment.

SEGMENTS:
1. ML_ENGINEER: Heavy AI/ML project focus, deep technical engagement
2. FULLSTACK_DEV: Balanced frontend/backend interest, holistic view
3. RECRUITER: Quick scan, contact-focused, evaluation mode
4. STUDENT: Exploratory, long session time, learning intent
5. CASUAL: Brief visit, no clear pattern, browsing mode

Provide xAI-style explanation:
- WHAT: What did the user do? (key events, patterns)
- WHY: Why does this indicate the segment? (causal reasoning)
- SO WHAT: What does this mean for their intent? (business impact)
- RECOMMENDATION: How should we personalize? (actionable insight)

Respond ONLY with JSON (no markdown, no code fences):
{
  "segment": "SEGMENT_NAME",
  "confidence": 0.0-1.0,
  "reasoning": "Brief summary",
  "xai_explanation": {
    "what": "User clicked 3 AI projects, hovered on Python/TensorFlow skills for 15s total",
    "why": "Heavy ML engagement indicates technical depth and domain expertise",
    "so_what": "This is a potential technical hire or peer looking for ML capabilities",
    "recommendation": "Prioritize AI/ML projects, emphasize technical depth and model architecture"
  }
}`

// rulesPromptTemplate is the per-segment rule generation instruction. The
// single %s verb receives the segment label.
const rulesPromptTemplate = `Based on segment %s and behavior patterns, generate personalization rules that maximize engagement.

AVAILABLE SECTIONS: projects, skills, experience, about, contact
AVAILABLE PROJECTS: ai_projects, fullstack_apps, data_science, mobile_apps, cloud_infra
AVAILABLE SKILLS: python, javascript, react, tensorflow, docker, kubernetes, aws

Provide xAI-style explanation for your rule choices:
- WHAT: What rules are you creating? (the changes)
- WHY: Why these rules for this segment? (reasoning)
- SO WHAT: What impact will this have? (expected outcome)
- RECOMMENDATION: What else to consider? (future improvements)

Respond ONLY with JSON (no markdown, no code fences):
{
  "priority_sections": ["section1", "section2", "section3"],
  "featured_projects": ["proj1", "proj2"],
  "highlight_skills": ["skill1", "skill2", "skill3"],
  "reasoning": "Brief summary of personalization strategy",
  "xai_explanation": {
    "what": "Prioritizing projects section, featuring AI projects, highlighting ML skills",
    "why": "The segment values technical depth and hands-on experience",
    "so_what": "User will immediately see relevant projects, increasing engagement",
    "recommendation": "Consider adding a technical blog section for this segment"
  }
}`
