package policy

// Seed is the campus policy catalog installed by `admin seedpolicies`.
// Codes follow the student-org handbook numbering.
var Seed = []NewPolicy{
	{
		Code:     "rso-101",
		Title:    "RSO Registration and Good Standing",
		Body:     "A Registered Student Organization (RSO) must renew its registration every fall, maintain at least five enrolled members and a faculty advisor, and keep its officer roster current to remain in good standing. Organizations not in good standing may not reserve space or request funding.",
		Keywords: []string{"rso", "registration", "renewal", "advisor", "officers", "good standing"},
		Category: CategoryGeneral,
	},
	{
		Code:     "rso-103",
		Title:    "Event Funding Requests",
		Body:     "Funding requests must be submitted at least 21 days before the event date. Requests above $500 require an itemized budget and advisor sign-off. Awarded funds may not be spent on gifts, alcohol, or donations.",
		Keywords: []string{"funding", "budget", "money", "request", "reimbursement", "allocation"},
		Category: CategoryFunding,
	},
	{
		Code:     "rso-110",
		Title:    "Room and Space Reservations",
		Body:     "Campus rooms and outdoor spaces are reserved through the student union office on a first-come basis, no later than 10 business days before the event. Events expecting more than 100 attendees require a facilities review.",
		Keywords: []string{"room", "space", "reservation", "venue", "booking", "facilities"},
		Category: CategorySpace,
	},
	{
		Code:     "rso-115",
		Title:    "Food Service at Events",
		Body:     "Events serving food to the public must use a licensed caterer or file a temporary food permit 14 days in advance. Potluck-style events are limited to members only. Allergen labeling is required for all served items.",
		Keywords: []string{"food", "catering", "permit", "allergen", "potluck", "serving"},
		Category: CategoryFood,
	},
	{
		Code:     "rso-120",
		Title:    "Off-Campus Travel",
		Body:     "Organization travel beyond 50 miles requires a travel roster filed 7 days ahead, a designated trip leader, and signed liability waivers from all participants. Overnight trips additionally require advisor approval.",
		Keywords: []string{"travel", "trip", "waiver", "roster", "overnight", "transportation"},
		Category: CategoryTravel,
	},
	{
		Code:     "rso-130",
		Title:    "Fundraising and Sales",
		Body:     "On-campus fundraising and merchandise sales must be approved by student affairs. Raffles require a games-of-chance permit. All proceeds must be deposited into the organization's campus account within 48 hours.",
		Keywords: []string{"fundraiser", "fundraising", "sales", "raffle", "merchandise", "proceeds"},
		Category: CategoryFunding,
	},
	{
		Code:     "rso-140",
		Title:    "Speaker and Performer Agreements",
		Body:     "Contracts with outside speakers or performers may only be signed by the student activities office. Honoraria above $250 require a W-9 on file. Security staffing is assessed for events with external audiences.",
		Keywords: []string{"speaker", "performer", "contract", "honorarium", "security", "guest"},
		Category: CategoryConduct,
	},
	{
		Code:     "rso-150",
		Title:    "Publicity and Posting",
		Body:     "Flyers may be posted only on designated boards and must carry the organization's name and event date. Chalking is permitted on horizontal surfaces exposed to rain. Digital signage requests go through the union marketing desk.",
		Keywords: []string{"flyer", "poster", "publicity", "advertising", "chalking", "signage"},
		Category: CategoryGeneral,
	},
}
