package controller

import (
	"bytes"
	"html/template"
	"net/url"

	"smartschedule/modules/calendar/service"
)

const (
	messageCalendarSuccess = "calendar-success"
	messageCalendarError   = "calendar-error"
)

var callbackPage = template.Must(template.New("callback").Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>Calendar connection</title>
<style>body{font-family:Inter,Arial,Helvetica,sans-serif;margin:40px;color:#111}</style>
</head>
<body>
<p>{{.Text}}</p>
<script>
(function () {
  var message = {{.Message}};
  if (window.opener) {
    window.opener.postMessage(message, {{.TargetOrigin}});
  }
  window.close();
})();
</script>
</body>
</html>`))

type callbackView struct {
	Text         string
	Message      map[string]string
	TargetOrigin string
}

// targetOrigin restricts postMessage to the origin of an absolute redirect URL.
func targetOrigin(redirectURL string) string {
	u, err := url.Parse(redirectURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "*"
	}
	return u.Scheme + "://" + u.Host
}

func renderCallbackPage(outcome *service.HandshakeOutcome) (string, error) {
	view := callbackView{
		Text:         "Calendar connected. You can close this window.",
		Message:      map[string]string{"type": messageCalendarSuccess},
		TargetOrigin: targetOrigin(outcome.RedirectURL),
	}
	if outcome.State != service.HandshakeConnected {
		view.Text = "Calendar connection failed. You can close this window and try again."
		view.Message = map[string]string{"type": messageCalendarError, "error": string(outcome.ErrorCode)}
	}

	var buf bytes.Buffer
	if err := callbackPage.Execute(&buf, view); err != nil {
		return "", err
	}
	return buf.String(), nil
}
