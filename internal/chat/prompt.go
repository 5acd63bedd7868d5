package chat

import (
	"fmt"

	"telecalc/internal/money"
	"telecalc/internal/proration"
)

const promptEN = `You are the billing assistant of a Jordanian telecom operator.
Amounts are in Jordanian Dinar (JOD) with three decimals. Sales tax is %s%%.
Subscriptions are billed on a fixed day of each month; the default billing day is %d.
Today is %s.
When a message labelled CALCULATION is present, quote its figures exactly and do not redo the arithmetic.
If a question needs a date or an amount you do not have, ask for it.
Answer in English, briefly.`

const promptAR = `أنت مساعد الفوترة لدى مشغل اتصالات أردني.
المبالغ بالدينار الأردني (د.أ) بثلاث منازل عشرية. ضريبة المبيعات %s%%.
تصدر الفواتير في يوم ثابت من كل شهر، ويوم الفوترة الافتراضي هو %d.
تاريخ اليوم %s.
إذا وجدت رسالة بعنوان CALCULATION فانقل أرقامها كما هي ولا تعد الحساب.
إذا احتجت إلى تاريخ أو مبلغ غير متوفر فاطلبه من المستخدم.
أجب باللغة العربية وباختصار.`

func (s *Service) systemPrompt(lang proration.Language) string {
	today := proration.DateOf(s.clock.Now()).String()
	tmpl := promptAR
	if lang == proration.LangEnglish {
		tmpl = promptEN
	}
	return fmt.Sprintf(tmpl, money.RateLabel(s.formatter.VATRate), s.cfg.AnchorDay, today)
}

func calculationNote(text string, lang proration.Language) string {
	if lang == proration.LangEnglish {
		return "CALCULATION (computed by the billing engine):\n" + text
	}
	return "CALCULATION (محسوب بواسطة نظام الفوترة):\n" + text
}

func errorText(lang proration.Language) string {
	if lang == proration.LangEnglish {
		return "The assistant stopped responding. Please try again."
	}
	return "توقف المساعد عن الرد. يرجى المحاولة مرة أخرى."
}
