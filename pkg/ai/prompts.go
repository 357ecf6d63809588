package ai

// Prompt templates for knowledge-element extraction. Callers fill the
// placeholders with fmt.Sprintf; the type list, field templates, and
// closed name context are built by the dispatcher from the schema registry.

const ExtractNodesPrompt = `
# Task Context
You are tasked with extracting **typed knowledge elements** from the provided text. Capture every element of the requested types that is explicitly present in the text, without omission and without invention.

# Background Data
- **Node_types:** [%s]

Field templates per type:
%s

# Detailed Task Description & Rules
- Extract ONLY elements of the listed node types. Ignore everything else.
- Every element must have a "nodeType" field (one of the listed types) and a non-empty "name" field.
- Fill the type-specific fields from the templates above when the text supports them. Omit fields the text says nothing about; never invent values.
- For Entity elements, set "subType" to one of: Person, Organization, Location, Artifact, Animal, Concept.
- Use the most complete form of a name that appears in the text (e.g., "Marie Curie", not "Curie").
- Confidence-style numeric fields range from 0.0 to 1.0.

# Immediate Task Description or Request
Extract all elements of the listed types from the following text.

Text:
"""
%s
"""

# Output Formatting
Return ONLY a JSON array of element objects, one object per element:
[
  {
    "nodeType": "<one of the listed types>",
    "name": "<element name>",
    ...type-specific fields
  }
]
No commentary, no markdown, no extra text.
`

const ExtractRelationshipsPrompt = `
# Task Context
You are tasked with extracting **relationships** between already-identified knowledge elements. You are given the closed set of elements found in this text; relationships may ONLY connect elements from that set.

# Background Data
- **Known_elements:** [%s]
- **Relationship_types:** [%s]

# Detailed Task Description & Rules
- Both "source" and "target" must name elements from the Known_elements list, exactly as written there. Do not introduce new names.
- "type" should be one of the listed relationship types. If none fits, use RELATED_TO.
- Set "confidenceScore" (0.0-1.0) based on how explicitly the text states the relationship.
- Only extract relationships the text actually supports. An empty array is a valid answer.

# Immediate Task Description or Request
Extract all relationships between the known elements from the following text.

Text:
"""
%s
"""

# Output Formatting
Return ONLY a JSON array:
[
  {
    "source": {"name": "<element name>", "type": "<element type>"},
    "target": {"name": "<element name>", "type": "<element type>"},
    "type": "<relationship type>",
    "properties": {"confidenceScore": <0.0-1.0>}
  }
]
No commentary, no markdown, no extra text.
`

const PersonDetailPrompt = `
# Task Context
You are a careful observer of human behavior. For the named person, collect behavioral and psychological observations grounded strictly in the provided text.

# Background Data
- **Person:** %s

# Detailed Task Description & Rules
- Each observation is one concrete statement about the person supported by the text.
- "dimension" classifies the observation: personality, cognition, emotion, relationships, values, development, or interpersonal.
- "evidence" quotes or closely paraphrases the supporting passage.
- "confidence" (0.0-1.0) reflects how directly the text supports the observation.
- Do not speculate beyond the text. Zero observations is a valid answer.

# Immediate Task Description or Request
Collect observations about %s from the following text.

Text:
"""
%s
"""
`

const LocationDetailPrompt = `
# Task Context
You are tasked with describing a location mentioned in the provided text, using only details the text states.

# Background Data
- **Location:** %s

# Detailed Task Description & Rules
- Fill only fields the text supports: locationType, description, significance, and coordinates if given.
- Do not invent geographic facts.

# Immediate Task Description or Request
Describe %s based on the following text.

Text:
"""
%s
"""
`

const SynthesizeProfilePrompt = `
# Task Context
You are a psychologist synthesizing a structured profile of a person from accumulated observations gathered across a long text.

# Background Data
- **Person:** %s
- **Observations:**
%s

# Detailed Task Description & Rules
- Synthesize across ALL observations; do not merely restate single observations.
- Ground every profile statement in the observations; do not speculate.
- personalityTraits lists stable traits with the evidence pattern behind each.
- cognitiveStyle, emotionalProfile, relationalDynamics, valueSystem, psychologicalDevelopment, and interpersonalStyle each summarize their dimension in a few sentences.
- Leave a field empty when the observations say nothing about that dimension.

# Immediate Task Description or Request
Synthesize the profile of %s from the observations above.
`
