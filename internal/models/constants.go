package models

var (
	RelevancePromptTemplate = `You are a relevance judge. Given a search query and a passage, rate how well the passage answers the query on a scale from 0 to 100.
<query>
%s
</query>
<passage>
%s
</passage>
Answer only with the integer score and nothing else.
`
)
