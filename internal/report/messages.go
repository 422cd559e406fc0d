package report

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
)

// NotConfigured is sent for every command while no API key is set.
const NotConfigured = "❌ 插件未配置 API 密钥/API key not configured, set panel_api_key or PANEL_API_KEY"

// Help lists the supported commands.
const Help = `🖥️ 1Panel 面板监控/Panel monitor

📊 系统监控/Monitoring:
/panel status - 系统状态/System status (CPU, memory, load, disk, network)
/panel info - 系统信息/Host info (hostname, version, uptime)
/panel all - 全部信息/Overview

🐳 容器管理/Containers:
/panel docker - 查看容器列表/List containers
/panel docker start|stop|restart|pause|unpause <名称/name> - 操作容器/Operate

📦 应用管理/Apps:
/panel apps - 查看已安装应用/Installed apps

🔐 安全相关/Security:
/panel ssh [页码/page] [All|Success|Failed] - SSH 登录日志/SSH logins
/panel firewall [port|address] - 防火墙规则/Firewall rules

⏰ 定时任务/Scheduled tasks:
/panel cron - 查看定时任务/List tasks

🛠️ 调试/Debug:
/panel debug [base|status|info] - 原始响应/Raw API response`

var operationTexts = map[string]string{
	"start":   "启动/start",
	"stop":    "停止/stop",
	"restart": "重启/restart",
	"pause":   "暂停/pause",
	"unpause": "恢复/unpause",
}

func operationText(op string) string {
	if text, ok := operationTexts[op]; ok {
		return text
	}
	return op
}

// ContainerOperating is sent before a container operation is submitted.
func ContainerOperating(name, op string) string {
	return fmt.Sprintf("⏳ 正在%s容器/Running %s on container %s ...", operationText(op), op, name)
}

// ContainerOperated is sent once the panel accepted a container operation.
func ContainerOperated(name, op string) string {
	return fmt.Sprintf("✅ 容器/Container %s %s 成功/succeeded", name, operationText(op))
}

// ContainerUsage explains a container operation without a name.
func ContainerUsage(op string) string {
	return fmt.Sprintf("❌ 请指定容器名称/Container name required\n用法/Usage: /panel docker %s <容器名称/name>", op)
}

// FirewallUsage explains an unsupported firewall rule type.
func FirewallUsage(ruleType string) string {
	return fmt.Sprintf("❌ 不支持的规则类型/Unsupported rule type: %s\n用法/Usage: /panel firewall [port|address]", ruleType)
}

// SSHUsage explains an unsupported ssh argument.
func SSHUsage(arg string) string {
	return fmt.Sprintf("❌ 无效参数/Invalid argument: %s\n用法/Usage: /panel ssh [页码/page] [All|Success|Failed]", arg)
}

// DebugUsage explains an unsupported debug target.
func DebugUsage(target string) string {
	return fmt.Sprintf("❌ 不支持的调试目标/Unsupported debug target: %s\n💡 可用/Available: /panel debug base|status|info", target)
}

// UnknownCommand is sent for command words the bot does not handle.
func UnknownCommand(command string) string {
	return fmt.Sprintf("❌ 未知命令/Unknown command: %s\n使用/Use /panel 查看帮助/for help", command)
}

// Failed reports a transport level failure of an action. Details are logged,
// not shown.
func Failed(action string) string {
	return fmt.Sprintf("❌ %s失败/failed, 请检查配置/check the panel address and network", action)
}

// Rejected reports an action the panel answered with an error code.
func Rejected(action string, code int, message string) string {
	if message == "" {
		return fmt.Sprintf("❌ %s失败/failed: code %d", action, code)
	}
	return fmt.Sprintf("❌ %s失败/failed: %s", action, message)
}

// Crashed reports an internal failure while handling a command.
func Crashed(command string) string {
	return fmt.Sprintf("❌ 处理命令出错/Internal error while handling: %s", command)
}

// Debug pretty prints a raw payload, cut to maxDebugLength characters.
func Debug(target string, raw json.RawMessage) string {
	var out bytes.Buffer
	text := string(raw)
	if err := json.Indent(&out, raw, "", "  "); err == nil {
		text = out.String()
	}
	if len([]rune(text)) > maxDebugLength {
		text = truncate(text, maxDebugLength) + "\n..."
	}
	return fmt.Sprintf("📋 API 响应/response (%s):\n```\n%s\n```\n\n💡 可用/Available: /panel debug base|status|info", target, text)
}
