package email

import "html/template"

var resetTemplate = template.Must(template.New("password_reset").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>Password reset</title></head>
<body style="font-family: Arial, sans-serif; color: #333;">
  <h2>{{.AppName}}</h2>
  <p>Hello {{.Username}},</p>
  <p>We received a request to reset your password. Use the button below to choose a new one.</p>
  <p><a href="{{.ResetURL}}" style="background: #1890ff; color: #fff; padding: 10px 20px; text-decoration: none; border-radius: 4px;">Reset password</a></p>
  <p>Or copy this link into your browser:<br>{{.ResetURL}}</p>
  <p>The link expires in {{.ExpiresIn}} minutes and can be used once.</p>
  <p>If you did not request a reset, ignore this email. Your password will not change.</p>
</body>
</html>`))

var changedTemplate = template.Must(template.New("password_changed").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>Password changed</title></head>
<body style="font-family: Arial, sans-serif; color: #333;">
  <h2>{{.AppName}}</h2>
  <p>Hello {{.Username}},</p>
  <p>The password of your account was changed.</p>
  <ul>
    <li>Time: {{.ChangedAt}}</li>
    <li>IP address: {{.IPAddress}}</li>
  </ul>
  <p>All sessions have been signed out. If this was not you, reset your password immediately and contact support.</p>
</body>
</html>`))
