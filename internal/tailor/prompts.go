package tailor

import (
	"fmt"
	"strings"
)

// systemInstruction is sent with every provider call. The no-fabrication
// constraint is the product's core promise and is never relaxed.
const systemInstruction = `You are a professional executive career coach.
You must not invent experience, education, certifications, companies, job titles, dates, or achievements.
You may improve phrasing and structure but must preserve factual accuracy.
If metrics are missing, suggest placeholders like [Add metric].`

// Section markers. The parser keys on these exact literals, so they must
// match the prompt text byte for byte.
const (
	markerOptimizedResume    = "===OPTIMIZED_RESUME==="
	markerCoverLetter        = "===COVER_LETTER==="
	markerKeywordGap         = "===KEYWORD_GAP==="
	markerInterviewQuestions = "===INTERVIEW_QUESTIONS==="
)

func generatePrompt(resumeText, jobText string) string {
	return fmt.Sprintf(`You must generate 4 sections for the user's career materials. Output them in this EXACT format with these EXACT markers:

%s
[optimized resume text]

%s
[cover letter text]

%s
[keyword gap analysis text]

%s
[interview questions text]

ORIGINAL RESUME:
%s

JOB DESCRIPTION:
%s

Now generate all 4 sections following these instructions:

1. OPTIMIZED RESUME:
- Optimize the resume to better match the job description
- DO NOT invent job titles, companies, dates, degrees, or certifications
- Only rearrange, rephrase, or highlight existing information
- If metrics are missing, use placeholders like [Add metric] or [Add percentage]
- Keep all dates, companies, and titles exactly as provided
- Maintain the same resume format and structure
- Highlight relevant skills and experience for this job
- Use keywords from the job description naturally
- Emphasize accomplishments with metrics (use placeholders if missing)

2. COVER LETTER:
- Write a compelling cover letter (3-4 paragraphs)
- Only reference experience and skills actually listed in the resume
- DO NOT invent achievements, projects, or credentials
- Extract company name from job description if available
- Keep tone professional but personable
- Opens with a strong introduction
- Highlights 2-3 relevant achievements from the actual resume
- Shows genuine interest in the role
- Closes with a call to action

3. KEYWORD GAP ANALYSIS:
Provide a keyword gap analysis with these sections:

MATCHING KEYWORDS (Found in Resume):
[List skills and keywords that appear in both]

MISSING KEYWORDS (Not in Resume):
[List important keywords from job description missing in resume]

RECOMMENDATIONS:
[Give 5 specific, actionable suggestions to add missing keywords authentically]

MATCH SCORE: [Percentage]%%
[Brief explanation of the score]

4. INTERVIEW QUESTIONS:
Generate interview questions organized into these sections:

TECHNICAL QUESTIONS:
[5-7 questions based on required skills in the job description]

BEHAVIORAL QUESTIONS:
[5 questions using STAR method, relevant to the role]

ROLE-SPECIFIC QUESTIONS:
[3-5 questions about specific responsibilities mentioned in job description]

PREPARATION TIPS:
[5 actionable tips for this specific interview]

IMPORTANT: Use the exact markers shown above. Do not use markdown code blocks or extra formatting. Output plain text only.`,
		markerOptimizedResume, markerCoverLetter, markerKeywordGap, markerInterviewQuestions,
		resumeText, jobText)
}

func refinePrompt(sectionName, resumeText, jobText, currentText, instruction string) string {
	return fmt.Sprintf(`You are refining a specific section of career materials based on user feedback.

ORIGINAL RESUME:
%s

JOB DESCRIPTION:
%s

CURRENT %s:
%s

USER'S REFINEMENT INSTRUCTION:
%s

TASK:
Improve the %s based on the user's instruction above. Follow these rules:

1. Address the user's specific refinement request
2. DO NOT invent job titles, companies, dates, degrees, certifications, or achievements
3. Only use information from the original resume
4. If metrics are missing, use placeholders like [Add metric] or [Add percentage]
5. Maintain professional tone and formatting
6. Keep all factual information accurate
7. Return ONLY the improved section text with no markdown code blocks, no explanations, no prefixes

Output the refined %s text directly:`,
		resumeText, jobText, strings.ToUpper(sectionName), currentText, instruction, sectionName, sectionName)
}
