package config

var defaultTemplates = map[string]TaskTemplate{
	"translate": {
		System: "You translate {source_language} social media posts into {target_language}.",
		Instructions: `Translate the post into {target_language} and classify its topic.
Copy every placeholder such as __RT__ or __HT0__ exactly as it appears. Keep emoji unchanged.
Use the glossary for the fixed rendering of names and terms.
Choose the category from: {categories}.
If the post announces an event, give its start and end as YYYY-MM-DD HH:MM, resolving relative dates against {timestamp}. Otherwise write none.
Answer with exactly four fields separated by {delimiter} and nothing else:
translation{delimiter}category{delimiter}start{delimiter}end`,
	},
	"classify": {
		System: "You classify {source_language} social media posts.",
		Instructions: `Classify the post. Choose the category from: {categories}.
Answer with exactly three fields separated by {delimiter} and nothing else:
category{delimiter}subcategory{delimiter}short reason
Write none for a field you cannot fill.`,
	},
	"schedule": {
		System: "You extract event times from {source_language} social media posts.",
		Instructions: `Find the event window announced by the post. The post was published at {timestamp}.
Give start and end as YYYY-MM-DD HH:MM. Write none for a time that is not stated.
Answer with exactly two fields separated by {delimiter} and nothing else:
start{delimiter}end`,
	},
	"reply": {
		System: "You write short, friendly replies to {source_language} social media posts.",
		Instructions: `Write one reply to the post in {source_language}.
Use the glossary for names and terms. Do not add hashtags.
Answer with the reply text only.`,
	},
}
