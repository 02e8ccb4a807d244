// Package kubernetes spawns nodes as pods on a Kubernetes cluster.
package kubernetes

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/gammadia/spawner/provisioner"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

const Driver = "kubernetes"

type Config struct {
	Logger *slog.Logger `json:"-"`
	// Kubeconfig is the path to a kubeconfig file. The in-cluster config is
	// used when empty.
	Kubeconfig string `json:"kubeconfig"`
	// ServiceAccount run by the node pods, if any.
	ServiceAccount string `json:"service-account"`
}

type Backend struct {
	clientset kubernetes.Interface
	config    Config
	log       *slog.Logger
}

// Backend implements provisioner.Backend
var _ provisioner.Backend = (*Backend)(nil)

func New(config Config) (*Backend, error) {
	restConfig, err := restConfig(config.Kubeconfig)
	if err != nil {
		return nil, err
	}

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset: %w", err)
	}

	return NewWithClientset(clientset, config), nil
}

func NewWithClientset(clientset kubernetes.Interface, config Config) *Backend {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		clientset: clientset,
		config:    config,
		log:       logger,
	}
}

func restConfig(kubeconfig string) (*rest.Config, error) {
	if kubeconfig == "" {
		config, err := rest.InClusterConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to load in-cluster config: %w", err)
		}
		return config, nil
	}

	config, err := clientcmd.BuildConfigFromFlags("", kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("failed to build kubeconfig: %w", err)
	}
	return config, nil
}

func (b *Backend) Driver() string {
	return Driver
}

func (b *Backend) RequiredKeys() []string {
	return nil
}

func (b *Backend) Submit(ctx context.Context, namespace string, spec *provisioner.ResourceSpec) error {
	pod, err := b.pod(namespace, spec)
	if err != nil {
		return err
	}

	if _, err := b.clientset.CoreV1().Pods(namespace).Create(ctx, pod, metav1.CreateOptions{}); err != nil {
		return fmt.Errorf("failed to create pod %s/%s: %w", namespace, spec.Name, err)
	}
	b.log.Debug("Created pod", "namespace", namespace, "pod", spec.Name)
	return nil
}

func (b *Backend) Address(ctx context.Context, name, namespace string) (string, error) {
	pod, err := b.clientset.CoreV1().Pods(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to get pod %s/%s: %w", namespace, name, err)
	}
	if pod.Status.Phase == corev1.PodFailed || pod.Status.Phase == corev1.PodSucceeded {
		return "", fmt.Errorf("pod %s/%s has terminated with phase %s", namespace, name, pod.Status.Phase)
	}
	return pod.Status.PodIP, nil
}

func (b *Backend) Delete(ctx context.Context, name, namespace string) error {
	err := b.clientset.CoreV1().Pods(namespace).Delete(ctx, name, metav1.DeleteOptions{})
	if apierrors.IsNotFound(err) {
		b.log.Debug("Pod already gone", "namespace", namespace, "pod", name)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete pod %s/%s: %w", namespace, name, err)
	}
	return nil
}

func (b *Backend) pod(namespace string, spec *provisioner.ResourceSpec) (*corev1.Pod, error) {
	requests, err := resourceList(spec.Requests)
	if err != nil {
		return nil, fmt.Errorf("invalid resource requests: %w", err)
	}
	limits, err := resourceList(spec.Limits)
	if err != nil {
		return nil, fmt.Errorf("invalid resource limits: %w", err)
	}

	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      spec.Name,
			Namespace: namespace,
			Labels:    spec.Labels,
		},
		Spec: corev1.PodSpec{
			RestartPolicy:      corev1.RestartPolicyNever,
			ServiceAccountName: b.config.ServiceAccount,
			Containers: []corev1.Container{
				{
					Name:            "node",
					Image:           spec.Image,
					ImagePullPolicy: corev1.PullIfNotPresent,
					Env:             envVars(spec.Env),
					Ports: []corev1.ContainerPort{
						{Name: "node", ContainerPort: int32(spec.Port), Protocol: corev1.ProtocolTCP},
					},
					Resources: corev1.ResourceRequirements{
						Requests: requests,
						Limits:   limits,
					},
				},
			},
		},
	}, nil
}

func resourceList(r provisioner.Resources) (corev1.ResourceList, error) {
	cpu, err := resource.ParseQuantity(r.CPU)
	if err != nil {
		return nil, fmt.Errorf("cpu '%s': %w", r.CPU, err)
	}
	memory, err := resource.ParseQuantity(r.Memory)
	if err != nil {
		return nil, fmt.Errorf("memory '%s': %w", r.Memory, err)
	}
	return corev1.ResourceList{
		corev1.ResourceCPU:    cpu,
		corev1.ResourceMemory: memory,
	}, nil
}

func envVars(env map[string]string) []corev1.EnvVar {
	vars := make([]corev1.EnvVar, 0, len(env))
	for name, value := range env {
		vars = append(vars, corev1.EnvVar{Name: name, Value: value})
	}
	sort.Slice(vars, func(i, j int) bool { return vars[i].Name < vars[j].Name })
	return vars
}
