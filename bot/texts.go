package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/erbtraffic/licensebot/core/telegram/format"
	"github.com/erbtraffic/licensebot/licensing"
)

const welcomePhotoURL = "https://picsum.photos/800/400?grayscale"

const expiryDateLayout = "02 Jan 2006"

const supportHandle = "@samuelsrom"

const paymentDetails = `
✨ <b>How to Complete Your Purchase:</b>

💳 <b>Available Methods:</b>
<i>(Tap any number below to copy)</i>
🔹 <b>bKash:</b> <code>01334677801</code> (Personal)
🔹 <b>bKash Merchant:</b> <code>01829014276</code> (Payment)
🔹 <b>Nagad:</b> <code>01334677801</code> (Personal)
🔹 <b>Upay:</b> <code>01334677801</code> (Personal)

📝 <b>Step-by-Step Instructions:</b>
1️⃣ Send the exact amount for your plan.
2️⃣ Capture a clear <b>Screenshot</b> of the success page.
3️⃣ <b>Upload the Screenshot</b> to this bot right now.
4️⃣ <b>Important:</b> Mention your <i>Transaction ID</i> in the photo caption.

⏳ <b>What's Next?</b>
After you send the photo, our Admin will verify it.
Your license key will be delivered 📩 automatically in <b>10-30 minutes</b>.
`

func welcomeCaption(userID string) string {
	return fmt.Sprintf(
		"<b>Welcome to ERB Traffic Bot! 🚀</b>\n\n"+
			"I am your personal assistant for managing your traffic licenses.\n\n"+
			"<b>🆔 Your ID:</b> <code>%s</code>\n\n"+
			"Select an option below to get started:", userID)
}

func trialActivatedText(key string) string {
	return fmt.Sprintf(
		"✅ <b>3-Day Trial Activated!</b>\n\n"+
			"Your Key: <code>%s</code>\n\n"+
			"Paste this key into the app to activate your features!", key)
}

const alreadyLicensedText = "⚠️ You already have a license associated with this account. " +
	"Use 👤 My License to check details."

func plansText() string {
	var b strings.Builder
	b.WriteString("💎 <b>ERB Traffic Premium Plans</b>\n\n")
	icons := map[string]string{"starter": "🟢", "30d": "🔵", "6m": "🟠", "perm": "👑"}
	for _, p := range licensing.Plans() {
		icon := icons[p.Code]
		duration := planDuration(p)
		fmt.Fprintf(&b, "%s <b>%s:</b> %s - %s\n", icon, p.Label, duration, p.Price)
	}
	b.WriteString("\n<i>Select a plan to see payment details:</i>")
	return b.String()
}

func planDuration(p licensing.Plan) string {
	switch {
	case p.Code == "perm":
		return "Lifetime"
	case p.Days%30 == 0 && p.Days > 30:
		return fmt.Sprintf("%d Months", p.Days/30)
	default:
		return fmt.Sprintf("%d Days", p.Days)
	}
}

func planButtonLabel(p licensing.Plan) string {
	switch p.Code {
	case "starter":
		return "Starter (15d)"
	case "30d":
		return "Standard (30d)"
	case "6m":
		return "Pro (6m)"
	case "perm":
		return "Permanent"
	default:
		return p.Label
	}
}

func paymentForPlanText(p licensing.Plan) string {
	return fmt.Sprintf("💳 <b>Payment for %s (%s - %s)</b>\n%s",
		p.Label, planDuration(p), p.Price, paymentDetails)
}

const selectPlanFirstText = "⚠️ Please select a plan first by clicking \"💎 Premium Plans\" " +
	"before sending your payment screenshot."

const screenshotSentText = "✅ <b>Screenshot sent to Admin!</b>\n\n" +
	"Please wait while we verify your transaction. You will receive a notification once approved."

const screenshotFailedText = "❌ <b>Error sending screenshot.</b> Please contact support directly."

func adminScreenshotCaption(displayName string, handle *string, userID, planCode, caption string) string {
	return fmt.Sprintf(
		"📩 <b>New Payment Screenshot!</b>\n"+
			"👤 <b>User:</b> %s (@%s)\n"+
			"🆔 <b>ID:</b> <code>%s</code>\n"+
			"📦 <b>Requested Plan:</b> %s\n"+
			"💬 <b>Caption:</b> %s",
		displayName, format.DerefString(handle, "N/A"), userID,
		strings.ToUpper(planCode), caption)
}

func approvedUserText(key string, days int, expiresAt time.Time) string {
	expiry := "Never"
	if days <= 365 {
		expiry = expiresAt.Format(expiryDateLayout)
	}
	return fmt.Sprintf(
		"🎊 <b>Congratulations! Your payment has been approved.</b>\n\n"+
			"🔑 <b>License Key:</b> <code>%s</code>\n"+
			"📅 <b>Expires:</b> %s\n\n"+
			"Happy Traffic! 🚀", key, expiry)
}

func approvedCaption(userID string, days int) string {
	return fmt.Sprintf("✅ Approved. User ID: %s for %d days.", userID, days)
}

var rejectedUserText = fmt.Sprintf(
	"❌ <b>Your payment was rejected!</b>\n\n"+
		"Please check your transaction details and try again or contact support at %s.", supportHandle)

func rejectedCaption(userID string) string {
	return fmt.Sprintf("❌ Rejected User ID: %s", userID)
}

const noLicenseText = "❌ <b>You do not have an active license.</b>\n" +
	"Click ⚡ Get Free Trial or 💎 Premium Plans to get started."

func licenseDetailsText(lic licensing.License) string {
	expiry := "Never"
	if !lic.Permanent() {
		expiry = lic.ExpiresAt.Format(expiryDateLayout)
	}
	return fmt.Sprintf(
		"📋 <b>License Details</b>\n\n"+
			"🔑 <b>Key:</b> <code>%s</code>\n"+
			"🏅 <b>Tier:</b> %s\n"+
			"📅 <b>Expires:</b> %s\n"+
			"💻 <b>Activations:</b> %d/%d",
		lic.Key, lic.Tier, expiry, len(lic.Activations), lic.MaxActivations)
}

var supportText = fmt.Sprintf(
	"🆘 <b>Support Details:</b>\n\n"+
		"Contact %s for any issues regarding payments or technical support.", supportHandle)

const unknownTextHint = "Use /start to open the menu."

const genericErrorText = "Something went wrong. Please try again in a moment."
