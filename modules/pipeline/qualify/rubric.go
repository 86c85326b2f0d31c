package qualify

// BuyerPersonaRubric is the single qualification rubric Stage 3 sends in
// every system prompt, grounded on the original's ai_qualification prompt
// (decision authority, relevance to facilities/energy capex, finance
// influence, current-employment confidence). The source's two drifted
// rubric branches are not both carried forward — this is the more
// complete/current of the two.
const BuyerPersonaRubric = `Target Buyer Personas, in priority order:
1. Director of Facilities/Engineering/Maintenance - primary decision maker for infrastructure and energy-efficiency projects.
2. CFO/Financial Leadership - budget authority for capital projects.
3. Sustainability Manager/Energy Manager - environmental goals and compliance.
4. COO/Director of Operations - operational efficiency focus.

Score each prospect 0-100 using:
- Job title relevance to energy/facilities decisions (35%)
- Decision-making authority level (25%)
- Current-employment confidence at the target company (20%)
- Engagement/network signal strength (20%)

Assign exactly one persona_tag per prospect from: facilities-decision-maker, finance-decision-maker, operations-decision-maker, energy/sustainability-lead, other.`
